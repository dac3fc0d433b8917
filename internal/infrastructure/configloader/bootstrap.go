package configloader

import (
	"errors"
	"fmt"
	"strings"
)

// Bootstrap 是 configs/ 下 YAML 的强类型映射。
// 所有时间类字段以秒为单位的整数表达，避免跨格式的 Duration 解析歧义。
type Bootstrap struct {
	Server        ServerConfig        `json:"server"`
	Data          DataConfig          `json:"data"`
	Storage       StorageConfig       `json:"storage"`
	Upload        UploadConfig        `json:"upload"`
	Observability ObservabilityConfig `json:"observability"`
}

// ServerConfig 描述对外服务监听配置。
type ServerConfig struct {
	HTTP HTTPConfig `json:"http"`
}

// HTTPConfig 描述 HTTP Server 参数。
type HTTPConfig struct {
	Network        string `json:"network"`
	Addr           string `json:"addr"`
	TimeoutSeconds int64  `json:"timeout_seconds"`
}

// DataConfig 描述数据层配置。
type DataConfig struct {
	Postgres PostgresConfig `json:"postgres"`
}

// PostgresConfig 描述 PostgreSQL 连接池参数。
type PostgresConfig struct {
	DSN                      string            `json:"dsn"`
	Schema                   string            `json:"schema"`
	MaxOpenConns             int32             `json:"max_open_conns"`
	MinOpenConns             int32             `json:"min_open_conns"`
	MaxConnLifetimeSeconds   int64             `json:"max_conn_lifetime_seconds"`
	MaxConnIdleTimeSeconds   int64             `json:"max_conn_idle_time_seconds"`
	HealthCheckPeriodSeconds int64             `json:"health_check_period_seconds"`
	EnablePreparedStatements bool              `json:"enable_prepared_statements"`
	Transaction              TransactionConfig `json:"transaction"`
}

// TransactionConfig 描述 txmanager 的缺省事务参数。
type TransactionConfig struct {
	DefaultIsolation      string `json:"default_isolation"`
	DefaultTimeoutSeconds int64  `json:"default_timeout_seconds"`
	LockTimeoutSeconds    int64  `json:"lock_timeout_seconds"`
	MaxRetries            int32  `json:"max_retries"`
}

// StorageConfig 描述对象存储与签名凭证参数。
type StorageConfig struct {
	Bucket               string `json:"bucket"`
	SignerServiceAccount string `json:"signer_service_account"`
	PublicBaseURL        string `json:"public_base_url"`
	UploadURLTTLSeconds  int64  `json:"upload_url_ttl_seconds"`
}

// UploadConfig 描述上传校验规则的部署参数。
// 客户端与服务端必须使用同一组取值（见 internal/validation）。
type UploadConfig struct {
	AllowedContentTypes []string `json:"allowed_content_types"`
	MaxSizeBytes        int64    `json:"max_size_bytes"`
}

// ObservabilityConfig 描述追踪与指标导出配置。
type ObservabilityConfig struct {
	Tracing *TracingConfig `json:"tracing"`
	Metrics *MetricsConfig `json:"metrics"`
}

// TracingConfig 描述分布式追踪导出参数。
type TracingConfig struct {
	Enabled       bool    `json:"enabled"`
	Exporter      string  `json:"exporter"`
	Endpoint      string  `json:"endpoint"`
	Insecure      bool    `json:"insecure"`
	SamplingRatio float64 `json:"sampling_ratio"`
}

// MetricsConfig 描述指标导出参数。
type MetricsConfig struct {
	Enabled         bool   `json:"enabled"`
	Exporter        string `json:"exporter"`
	Endpoint        string `json:"endpoint"`
	Insecure        bool   `json:"insecure"`
	IntervalSeconds int64  `json:"interval_seconds"`
}

// Validate 执行显式的配置完整性校验。
// 必填：postgres.dsn、storage.bucket、storage.public_base_url。
func (b *Bootstrap) Validate() error {
	if b == nil {
		return errors.New("bootstrap config is nil")
	}
	var problems []string
	if strings.TrimSpace(b.Data.Postgres.DSN) == "" {
		problems = append(problems, "data.postgres.dsn is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(b.Storage.Bucket) == "" {
		problems = append(problems, "storage.bucket is required (set INGEST_BUCKET)")
	}
	if strings.TrimSpace(b.Storage.PublicBaseURL) == "" {
		problems = append(problems, "storage.public_base_url is required")
	}
	if b.Storage.UploadURLTTLSeconds < 0 {
		problems = append(problems, "storage.upload_url_ttl_seconds must be non-negative")
	}
	if b.Upload.MaxSizeBytes < 0 {
		problems = append(problems, "upload.max_size_bytes must be non-negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid bootstrap config: %s", strings.Join(problems, "; "))
	}
	return nil
}

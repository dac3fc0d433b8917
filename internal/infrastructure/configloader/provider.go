package configloader

import (
	"time"

	"github.com/yovideo/services-ingest/internal/validation"

	"github.com/bionicotaku/lingo-utils/gclog"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	Build,
	ProvideServiceMetadata,
	ProvideBootstrap,
	ProvideServerConfig,
	ProvidePostgresConfig,
	ProvideStorageConfig,
	ProvideUploadRules,
	ProvideTxConfig,
	ProvideLoggerConfig,
	ProvideObservabilityConfig,
)

// ProvideServiceMetadata returns the resolved ServiceMetadata from the bundle.
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvideBootstrap exposes the strongly typed bootstrap configuration.
func ProvideBootstrap(b *Bundle) *Bootstrap {
	if b == nil {
		return nil
	}
	return b.Bootstrap
}

// ProvideServerConfig returns the server section of the bootstrap configuration.
func ProvideServerConfig(bc *Bootstrap) ServerConfig {
	if bc == nil {
		return ServerConfig{}
	}
	return bc.Server
}

// ProvidePostgresConfig returns the postgres section of the bootstrap configuration.
func ProvidePostgresConfig(bc *Bootstrap) PostgresConfig {
	if bc == nil {
		return PostgresConfig{}
	}
	return bc.Data.Postgres
}

// ProvideStorageConfig returns the storage section with TTL defaults applied.
func ProvideStorageConfig(bc *Bootstrap) StorageConfig {
	if bc == nil {
		return StorageConfig{}
	}
	cfg := bc.Storage
	if cfg.UploadURLTTLSeconds <= 0 {
		cfg.UploadURLTTLSeconds = defaultUploadURLTTLSeconds
	}
	return cfg
}

// UploadURLTTL 返回写凭证的有效时长。
func (c StorageConfig) UploadURLTTL() time.Duration {
	ttl := c.UploadURLTTLSeconds
	if ttl <= 0 {
		ttl = defaultUploadURLTTLSeconds
	}
	return time.Duration(ttl) * time.Second
}

// ProvideUploadRules 构造在客户端与服务端共用的上传校验规则。
func ProvideUploadRules(bc *Bootstrap) validation.Rules {
	if bc == nil {
		return validation.NewRules(nil, 0)
	}
	return validation.NewRules(bc.Upload.AllowedContentTypes, bc.Upload.MaxSizeBytes)
}

// ProvideTxConfig exposes the normalized txmanager configuration.
func ProvideTxConfig(b *Bundle) txconfig.Config {
	if b == nil {
		return txconfig.Config{}
	}
	return b.TxConfig
}

// ProvideLoggerConfig derives the gclog configuration from service metadata.
func ProvideLoggerConfig(meta ServiceMetadata) gclog.Config {
	return meta.LoggerConfig()
}

// ProvideObservabilityConfig exposes the normalized observability configuration.
func ProvideObservabilityConfig(b *Bundle) obswire.ObservabilityConfig {
	if b == nil {
		return obswire.ObservabilityConfig{}
	}
	return b.ObsConfig
}

package main

import (
	configloader "github.com/yovideo/services-ingest/internal/infrastructure/configloader"
	"github.com/yovideo/services-ingest/internal/infrastructure/gcs"
	"github.com/yovideo/services-ingest/internal/services"
	"github.com/yovideo/services-ingest/internal/validation"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

// provideTxManager 基于连接池构造事务管理器。
func provideTxManager(pool *pgxpool.Pool, cfg txmanager.Config, kratosLogger log.Logger) (txmanager.Manager, error) {
	return txmanager.NewManager(pool, cfg, txmanager.Dependencies{Logger: kratosLogger})
}

// provideCredentialService 把存储配置中的标量参数展开给 CredentialService。
func provideCredentialService(signer *gcs.WriteSigner, rules validation.Rules, cfg configloader.StorageConfig, kratosLogger log.Logger) (*services.CredentialService, error) {
	return services.NewCredentialService(signer, rules, cfg.Bucket, cfg.PublicBaseURL, cfg.UploadURLTTL(), kratosLogger)
}

//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/yovideo/services-ingest/internal/controllers"
	"github.com/yovideo/services-ingest/internal/infrastructure/configloader"
	"github.com/yovideo/services-ingest/internal/infrastructure/database"
	"github.com/yovideo/services-ingest/internal/infrastructure/gcs"
	"github.com/yovideo/services-ingest/internal/repositories"
	"github.com/yovideo/services-ingest/internal/server"
	"github.com/yovideo/services-ingest/internal/services"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(context.Context, *configloader.Bundle, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProvideServiceMetadata,
		configloader.ProvideBootstrap,
		configloader.ProvideServerConfig,
		configloader.ProvidePostgresConfig,
		configloader.ProvideStorageConfig,
		configloader.ProvideUploadRules,
		configloader.ProvideTxConfig,
		database.ProviderSet,
		gcs.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		controllers.ProviderSet,
		server.ProviderSet,
		provideTxManager,
		provideCredentialService,
		wire.Bind(new(services.SourceRepo), new(*repositories.SourceRepository)),
		wire.Bind(new(services.SourceJobRepo), new(*repositories.JobRepository)),
		wire.Bind(new(services.ProgressJobRepo), new(*repositories.JobRepository)),
		wire.Bind(new(services.ProgressSourceRepo), new(*repositories.SourceRepository)),
		newApp,
	))
}

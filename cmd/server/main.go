package main

import (
	"context"
	"flag"
	"os"

	configloader "github.com/yovideo/services-ingest/internal/infrastructure/configloader"
	"github.com/yovideo/services-ingest/internal/infrastructure/logger"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "", "config path, eg: -conf configs/config.yaml")
}

func newApp(meta configloader.ServiceMetadata, kratosLogger log.Logger, hs *khttp.Server) *kratos.App {
	return kratos.New(
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(kratosLogger),
		kratos.Server(
			hs,
		),
	)
}

func main() {
	flag.Parse()
	if Version != "" {
		_ = os.Setenv("SERVICE_VERSION", Version)
	}

	bundle, err := configloader.Build(configloader.Params{ConfPath: flagconf})
	if err != nil {
		panic(err)
	}

	kratosLogger, err := logger.NewLogger(bundle.Service.LoggerConfig())
	if err != nil {
		panic(err)
	}
	helper := log.NewHelper(kratosLogger)

	ctx := context.Background()
	shutdownObs, err := observability.Init(ctx, bundle.ObsConfig,
		observability.WithLogger(kratosLogger),
		observability.WithServiceName(bundle.Service.Name),
		observability.WithServiceVersion(bundle.Service.Version),
		observability.WithEnvironment(bundle.Service.Environment),
	)
	if err != nil {
		panic(err)
	}
	defer func() {
		if shutdownObs == nil {
			return
		}
		if err := shutdownObs(context.Background()); err != nil {
			helper.Warnf("observability shutdown failed: %v", err)
		}
	}()

	app, cleanup, err := wireApp(ctx, bundle, kratosLogger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}

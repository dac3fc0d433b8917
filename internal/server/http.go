// Package server wires the inbound HTTP server and its middleware stack.
package server

import (
	"net/http"
	"time"

	"github.com/yovideo/services-ingest/internal/controllers"
	configloader "github.com/yovideo/services-ingest/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c configloader.ServerConfig,
	source *controllers.SourceHandler,
	job *controllers.JobHandler,
	pool *pgxpool.Pool,
	logger log.Logger,
) *khttp.Server {
	opts := []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, khttp.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, khttp.Address(c.HTTP.Addr))
	}
	if c.HTTP.TimeoutSeconds > 0 {
		opts = append(opts, khttp.Timeout(time.Duration(c.HTTP.TimeoutSeconds)*time.Second))
	}

	srv := khttp.NewServer(opts...)

	root := srv.Route("/")
	source.RegisterRoutes(root)
	job.RegisterRoutes(root)
	registerHealth(srv, pool)

	return srv
}

// registerHealth 挂载存活与就绪探针。
// healthz 只确认进程存活；readyz 额外确认数据库连接可用。
func registerHealth(srv *khttp.Server, pool *pgxpool.Pool) {
	srv.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

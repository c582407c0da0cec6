// Command pipeline runs the whole chain in one process: watcher → cataloger
// → extractor → modeler, driven by the in-process scheduler instead of Kafka
// triggers. Intended for small deployments and local development; the
// durable state and idempotency guarantees are identical to the distributed
// workers, so the two modes can be mixed.
//
// Usage:
//
//	go run ./cmd/pipeline [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/avaldria/reportwatch/internal/cataloger"
	"github.com/avaldria/reportwatch/internal/extractor"
	"github.com/avaldria/reportwatch/internal/extractor/parser"
	"github.com/avaldria/reportwatch/internal/modeler"
	"github.com/avaldria/reportwatch/internal/scheduler"
	"github.com/avaldria/reportwatch/internal/store"
	"github.com/avaldria/reportwatch/internal/watcher"
	"github.com/avaldria/reportwatch/internal/watcher/source"
	"github.com/avaldria/reportwatch/pkg/config"
	"github.com/avaldria/reportwatch/pkg/health"
	"github.com/avaldria/reportwatch/pkg/logger"
	"github.com/avaldria/reportwatch/pkg/metrics"
	"github.com/avaldria/reportwatch/pkg/middleware"
	"github.com/avaldria/reportwatch/pkg/postgres"
	"github.com/avaldria/reportwatch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting pipeline", "source", cfg.Source.Kind, "interval", cfg.Watcher.Interval)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres, schema ready")

	src, err := newSource(cfg.Source)
	if err != nil {
		slog.Error("failed to configure source", "error", err)
		os.Exit(1)
	}

	// The change log is shared across replicas when Redis is reachable;
	// otherwise an in-memory log is enough for a single process, since the
	// catalog constraint absorbs re-delivery after a restart.
	var changeLog watcher.ChangeLog = watcher.NewMemoryChangeLog()
	var rdb *redis.Client
	if c, err := redis.NewClient(cfg.Redis); err == nil {
		rdb = c
		defer rdb.Close()
		changeLog = watcher.NewRedisChangeLog(rdb)
	} else {
		slog.Warn("redis unavailable, using in-memory change log", "error", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	w := watcher.New(src, changeLog)
	cat := cataloger.New(st, cfg.Cataloger.Extension, m)
	ext := extractor.New(st, st, extractor.NewSourceFetcher(cfg.Extractor), parser.NewRemote(cfg.Extractor), cfg.Extractor)
	mod := modeler.New(st, nil, cfg.Modeler.StatsWindowDays)
	runner := scheduler.New(w, cat, ext, mod, st, m)

	// View API alongside the scheduler.
	h := modeler.NewHandler(mod, rdb, cfg.Redis.CacheTTL, m)
	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/view", h.View)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("view api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	err = runner.Start(ctx, cfg.Watcher.Interval)
	if err != nil && ctx.Err() == nil {
		slog.Error("scheduler error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("pipeline stopped")
}

// newSource builds the configured source backend.
func newSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Kind {
	case "http":
		return source.NewHTTP(cfg), nil
	case "dir":
		if cfg.Root == "" {
			return nil, fmt.Errorf("dir source requires source.root")
		}
		return source.NewDir(cfg.Root), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

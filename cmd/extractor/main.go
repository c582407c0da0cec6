// Command extractor runs the extraction stage as a standalone worker.
//
// It drains the pending set (cataloged file versions with no extraction
// result), fetching bytes via each record's source URL and parsing them
// through the configured parse service. Runs are triggered reactively by the
// catalog-updates topic and by a periodic sweep that retries previously
// failed files. Progress is announced on the extract-complete topic.
//
// Usage:
//
//	go run ./cmd/extractor [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/avaldria/reportwatch/internal/extractor"
	"github.com/avaldria/reportwatch/internal/extractor/parser"
	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/internal/store"
	"github.com/avaldria/reportwatch/pkg/config"
	"github.com/avaldria/reportwatch/pkg/kafka"
	"github.com/avaldria/reportwatch/pkg/logger"
	"github.com/avaldria/reportwatch/pkg/metrics"
	"github.com/avaldria/reportwatch/pkg/postgres"
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
	slog.Info("starting extractor",
		"parser_url", cfg.Extractor.ParserURL,
		"concurrency", cfg.Extractor.Concurrency,
	)

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

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ExtractComplete)
	defer producer.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	ext := extractor.New(st, st, extractor.NewSourceFetcher(cfg.Extractor), parser.NewRemote(cfg.Extractor), cfg.Extractor)

	// Serialises triggered and swept runs; concurrent invocations would be
	// harmless (inserts are idempotent) but wasteful.
	var runMu sync.Mutex
	runOnce := func(ctx context.Context) {
		runMu.Lock()
		defer runMu.Unlock()
		summary, err := ext.ExtractPending(ctx)
		if err != nil {
			slog.Error("extraction run failed", "error", err)
			return
		}
		if m != nil {
			m.ExtractionsTotal.WithLabelValues("ok").Add(float64(summary.Processed))
			m.ExtractionsTotal.WithLabelValues("duplicate").Add(float64(summary.Skipped))
			m.ExtractionsTotal.WithLabelValues("failed").Add(float64(len(summary.Errors)))
			if n, err := st.PendingCount(ctx); err == nil {
				m.PendingFiles.Set(float64(n))
			}
		}
		if summary.Processed == 0 {
			return
		}
		event := kafka.Event{
			Key: "extractor",
			Value: pipeline.TriggerEvent{
				Stage:     "extractor",
				Inserted:  summary.Processed,
				EmittedAt: time.Now().UTC(),
			},
		}
		if err := producer.Publish(ctx, event); err != nil {
			slog.Error("failed to publish extract trigger", "error", err)
		}
	}

	// Periodic sweep: retries files whose extraction failed earlier, and
	// catches triggers lost while the worker was down.
	go func() {
		ticker := time.NewTicker(cfg.Watcher.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce(ctx)
			}
		}
	}()

	handler := func(ctx context.Context, key []byte, value []byte) error {
		if _, err := kafka.DecodeJSON[pipeline.TriggerEvent](value); err != nil {
			slog.Error("dropping undecodable trigger", "error", err)
			return nil
		}
		runOnce(ctx)
		return nil
	}
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates, handler)
	slog.Info("extractor consuming", "topic", cfg.Kafka.Topics.CatalogUpdates)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("extractor stopped")
}

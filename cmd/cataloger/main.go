// Command cataloger runs the catalog stage as a standalone worker.
//
// It consumes change events from the file-changes Kafka topic, filters them
// by extension, and inserts file records into PostgreSQL exactly once per
// version. Each successful insert publishes a trigger on the catalog-updates
// topic so the extractor wakes up.
//
// Usage:
//
//	go run ./cmd/cataloger [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avaldria/reportwatch/internal/cataloger"
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
	slog.Info("starting cataloger", "extension", cfg.Cataloger.Extension)

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

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates)
	defer producer.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	cat := cataloger.New(st, cfg.Cataloger.Extension, m)
	notify := func(ctx context.Context, inserted int) {
		if m != nil {
			m.RecordsCatalogedTotal.Add(float64(inserted))
		}
		event := kafka.Event{
			Key: "cataloger",
			Value: pipeline.TriggerEvent{
				Stage:     "cataloger",
				Inserted:  inserted,
				EmittedAt: time.Now().UTC(),
			},
		}
		if err := producer.Publish(ctx, event); err != nil {
			// The extractor's periodic sweep still picks the work up.
			slog.Error("failed to publish catalog trigger", "error", err)
		}
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.FileChanges, cataloger.HandleEvent(cat, notify))
	slog.Info("cataloger consuming", "topic", cfg.Kafka.Topics.FileChanges)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("cataloger stopped")
}

// Command watcher runs the file-watching stage as a standalone worker.
//
// On a fixed interval it refreshes the source listing, diffs it against the
// Redis change log, and publishes one change event per newly observed file
// version to the file-changes Kafka topic.
//
// Usage:
//
//	go run ./cmd/watcher [-config configs/development.yaml]
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

	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/internal/watcher"
	"github.com/avaldria/reportwatch/internal/watcher/source"
	"github.com/avaldria/reportwatch/pkg/config"
	"github.com/avaldria/reportwatch/pkg/kafka"
	"github.com/avaldria/reportwatch/pkg/logger"
	"github.com/avaldria/reportwatch/pkg/metrics"
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
	slog.Info("starting watcher", "source", cfg.Source.Kind, "interval", cfg.Watcher.Interval)

	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FileChanges)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.FileChanges)

	src, err := newSource(cfg.Source)
	if err != nil {
		slog.Error("failed to configure source", "error", err)
		os.Exit(1)
	}
	w := watcher.New(src, watcher.NewRedisChangeLog(rdb))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	emit := func(ctx context.Context, events []pipeline.ChangeEvent) error {
		batch := make([]kafka.Event, len(events))
		for i, e := range events {
			batch[i] = kafka.Event{Key: e.RelativePath, Value: e}
		}
		if err := producer.PublishBatch(ctx, batch); err != nil {
			return err
		}
		if m != nil {
			m.ChangeEventsTotal.Add(float64(len(events)))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Watcher.Interval)
	defer ticker.Stop()
	for {
		summary, err := w.Run(ctx, emit)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// Source unavailable: retry on the next tick.
			slog.Error("watcher run failed", "error", err)
		} else if m != nil {
			m.FilesObservedTotal.Add(float64(summary.Processed + summary.Skipped))
		}
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return
		case <-ticker.C:
		}
	}
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

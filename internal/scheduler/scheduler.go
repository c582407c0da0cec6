// Package scheduler coordinates the four pipeline stages in a single
// process: watcher and cataloger run on a fixed interval, extractor and
// modeler run reactively, gated on upstream progress. Stages communicate
// only through durable state, so a run aborted at any point is resumed
// safely by the next one.
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/avaldria/reportwatch/internal/cataloger"
	"github.com/avaldria/reportwatch/internal/extractor"
	"github.com/avaldria/reportwatch/internal/modeler"
	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/internal/watcher"
	"github.com/avaldria/reportwatch/pkg/logger"
	"github.com/avaldria/reportwatch/pkg/metrics"
	"github.com/avaldria/reportwatch/pkg/tracing"
)

// PendingCounter reports the size of the extraction pending set, so the
// extractor also runs when earlier failures left work behind even though the
// cataloger inserted nothing this round.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int, error)
}

// RunReport aggregates the per-stage summaries of one pipeline run.
type RunReport struct {
	Watcher   pipeline.Summary `json:"watcher"`
	Cataloger pipeline.Summary `json:"cataloger"`
	Extractor pipeline.Summary `json:"extractor"`
	Modeler   pipeline.Summary `json:"modeler"`
	ViewRows  int              `json:"view_rows"`
}

// Runner drives one pipeline iteration at a time.
type Runner struct {
	watcher   *watcher.Watcher
	cataloger *cataloger.Cataloger
	extractor *extractor.Extractor
	modeler   *modeler.Modeler
	pending   PendingCounter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Runner. metrics may be nil.
func New(w *watcher.Watcher, c *cataloger.Cataloger, e *extractor.Extractor, m *modeler.Modeler, pending PendingCounter, mets *metrics.Metrics) *Runner {
	return &Runner{
		watcher:   w,
		cataloger: c,
		extractor: e,
		modeler:   m,
		pending:   pending,
		metrics:   mets,
		logger:    slog.Default().With("component", "scheduler"),
	}
}

// RunOnce executes one full chain: watcher → cataloger → extractor →
// modeler. Downstream stages with nothing to do are skipped as cheap no-ops.
// Only a stage-level failure (source or store unavailable) returns an error;
// per-record problems ride along in the report.
func (r *Runner) RunOnce(ctx context.Context) (RunReport, error) {
	runID := newRunID()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, "pipeline-run", runID)
	defer func() {
		span.End()
		span.Log()
	}()

	var report RunReport

	// Watcher hands new change events straight to the cataloger; the
	// handoff completes before the chain advances.
	err := r.stage(ctx, "watcher", func(ctx context.Context) (pipeline.Summary, error) {
		return r.watcher.Run(ctx, func(ctx context.Context, events []pipeline.ChangeEvent) error {
			report.Cataloger = r.cataloger.Ingest(ctx, events)
			return nil
		})
	}, &report.Watcher)
	if err != nil {
		return report, fmt.Errorf("watcher stage: %w", err)
	}
	r.recordStage("cataloger", report.Cataloger, nil)

	runExtractor := report.Cataloger.Processed > 0
	if !runExtractor && r.pending != nil {
		n, err := r.pending.PendingCount(ctx)
		if err != nil {
			return report, fmt.Errorf("checking pending set: %w", err)
		}
		if r.metrics != nil {
			r.metrics.PendingFiles.Set(float64(n))
		}
		runExtractor = n > 0
	}
	if !runExtractor {
		r.logger.Debug("no pending work, skipping extractor and modeler")
		return report, nil
	}

	err = r.stage(ctx, "extractor", func(ctx context.Context) (pipeline.Summary, error) {
		return r.extractor.ExtractPending(ctx)
	}, &report.Extractor)
	if err != nil {
		return report, fmt.Errorf("extractor stage: %w", err)
	}

	if report.Extractor.Processed == 0 {
		r.logger.Debug("no new extractions, skipping modeler")
		return report, nil
	}

	err = r.stage(ctx, "modeler", func(ctx context.Context) (pipeline.Summary, error) {
		rows, err := r.modeler.BuildView(ctx)
		if err != nil {
			return pipeline.Summary{}, err
		}
		report.ViewRows = len(rows)
		if r.metrics != nil {
			r.metrics.ViewRows.Set(float64(len(rows)))
		}
		return pipeline.Summary{Processed: len(rows)}, nil
	}, &report.Modeler)
	if err != nil {
		return report, fmt.Errorf("modeler stage: %w", err)
	}

	r.logger.Info("pipeline run complete",
		"cataloged", report.Cataloger.Processed,
		"extracted", report.Extractor.Processed,
		"view_rows", report.ViewRows,
	)
	return report, nil
}

// Start runs the pipeline immediately and then on every interval tick until
// ctx is cancelled.
func (r *Runner) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Stage-level failures are retried on the next tick.
			r.logger.Error("pipeline run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// stage runs fn with a child span and records duration and outcome metrics.
func (r *Runner) stage(ctx context.Context, name string, fn func(ctx context.Context) (pipeline.Summary, error), out *pipeline.Summary) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	summary, err := fn(ctx)
	span.SetAttr("processed", summary.Processed)
	span.SetAttr("skipped", summary.Skipped)
	span.End()

	*out = summary
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	r.recordStage(name, summary, err)
	return err
}

func (r *Runner) recordStage(name string, summary pipeline.Summary, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case summary.Processed == 0:
		outcome = "noop"
	}
	r.metrics.StageRunsTotal.WithLabelValues(name, outcome).Inc()
}

func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// Package extractor drains the pending set: cataloged file versions with no
// extraction result. Each file is fetched, parsed, and persisted exactly
// once; failures leave the file pending so the next invocation retries it.
// The stage is safe to invoke any number of times, concurrently or after an
// abort, because the result store's uniqueness constraint settles races.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avaldria/reportwatch/internal/extractor/parser"
	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/pkg/config"
	"github.com/avaldria/reportwatch/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// PendingLister lists cataloged versions awaiting extraction.
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]pipeline.FileRecord, error)
}

// ResultStore persists extraction results. InsertExtractionResult reports
// false when a result already exists for the version key.
type ResultStore interface {
	InsertExtractionResult(ctx context.Context, res pipeline.ExtractionResult) (bool, error)
}

// Extractor runs the extraction stage.
type Extractor struct {
	catalog PendingLister
	results ResultStore
	fetcher Fetcher
	parser  parser.Parser
	cfg     config.ExtractorConfig
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Extractor. The circuit breaker guards the parse service:
// once it is clearly down there is no point burning the whole pending set
// against it.
func New(catalog PendingLister, results ResultStore, fetcher Fetcher, p parser.Parser, cfg config.ExtractorConfig) *Extractor {
	return &Extractor{
		catalog: catalog,
		results: results,
		fetcher: fetcher,
		parser:  p,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("parse-service", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "extractor"),
		now:     time.Now,
	}
}

// ExtractPending processes every pending file version with bounded
// parallelism. Per-file failures become diagnostics, never batch failures;
// only an unavailable catalog aborts the invocation. An empty pending set is
// a cheap no-op.
func (e *Extractor) ExtractPending(ctx context.Context) (pipeline.Summary, error) {
	pending, err := e.catalog.ListPending(ctx, e.cfg.BatchLimit)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("listing pending files: %w", err)
	}
	if len(pending) == 0 {
		e.logger.Debug("no pending files")
		return pipeline.Summary{}, nil
	}

	concurrency := e.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	var summary pipeline.Summary

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, rec := range pending {
		rec := rec
		g.Go(func() error {
			outcome := e.extractOne(gctx, rec)
			mu.Lock()
			summary.Add(outcome)
			mu.Unlock()
			// Per-file failures never cancel sibling extractions.
			return nil
		})
	}
	g.Wait()

	e.logger.Info("extraction run complete",
		"pending", len(pending),
		"extracted", summary.Processed,
		"skipped", summary.Skipped,
		"failed", len(summary.Errors),
	)
	return summary, nil
}

// extractOne fetches, parses, and persists a single file version.
func (e *Extractor) extractOne(ctx context.Context, rec pipeline.FileRecord) pipeline.Summary {
	if ctx.Err() != nil {
		// Aborted mid-run: the file simply stays pending.
		return pipeline.Summary{}
	}

	var data []byte
	err := resilience.Retry(ctx, "fetch "+rec.RelativePath, resilience.RetryConfig{MaxAttempts: e.cfg.MaxAttempts}, func() error {
		var ferr error
		data, ferr = e.fetcher.Fetch(ctx, rec.SourceURL)
		return ferr
	})
	if err != nil {
		return e.failure(rec, fmt.Errorf("fetching bytes: %w", err))
	}

	var out parser.Output
	err = e.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, e.cfg.ParseTimeout, "parse "+rec.RelativePath, func(ctx context.Context) error {
			var perr error
			out, perr = e.parser.Parse(ctx, data)
			return perr
		})
	})
	if err != nil {
		return e.failure(rec, fmt.Errorf("parsing: %w", err))
	}

	result := pipeline.ExtractionResult{
		DocID:       pipeline.DocID(rec.RelativePath),
		VersionKey:  rec.VersionKey,
		Metadata:    out.Metadata,
		PageCount:   out.PageCount,
		Content:     out.Text,
		ExtractedAt: e.now().UTC(),
	}
	inserted, err := e.results.InsertExtractionResult(ctx, result)
	if err != nil {
		return e.failure(rec, fmt.Errorf("persisting result: %w", err))
	}
	if !inserted {
		// A concurrent run won the race. First insert wins, this one is
		// a benign no-op.
		e.logger.Debug("result already recorded", "version_key", rec.VersionKey)
		return pipeline.Summary{Skipped: 1}
	}

	e.logger.Info("file extracted",
		"path", rec.RelativePath,
		"doc_id", result.DocID,
		"version_key", rec.VersionKey,
		"pages", result.PageCount,
	)
	return pipeline.Summary{Processed: 1}
}

// failure records a per-file extraction failure. No partial record is
// written; the version stays pending and is retried next run.
func (e *Extractor) failure(rec pipeline.FileRecord, err error) pipeline.Summary {
	e.logger.Error("extraction failed",
		"path", rec.RelativePath,
		"version_key", rec.VersionKey,
		"error", err,
	)
	return pipeline.Summary{Errors: []pipeline.Diagnostic{{
		Kind:       pipeline.DiagExtractionFailed,
		Path:       rec.RelativePath,
		VersionKey: rec.VersionKey,
		Detail:     err.Error(),
	}}}
}

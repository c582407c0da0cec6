// Package cataloger turns change events into durable catalog records,
// exactly once per file version. It filters by extension, validates event
// fields, and relies on the store's uniqueness constraint for idempotency:
// replayed or re-detected events are absorbed as no-ops.
package cataloger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/pkg/metrics"
)

// CatalogStore persists file records. InsertFileRecord reports false when
// the version key is already present.
type CatalogStore interface {
	InsertFileRecord(ctx context.Context, rec pipeline.FileRecord) (bool, error)
}

// Cataloger ingests change events into the file catalog.
type Cataloger struct {
	store     CatalogStore
	extension string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Cataloger that accepts files with the given extension
// (case-insensitive; empty accepts everything). m may be nil.
func New(store CatalogStore, extension string, m *metrics.Metrics) *Cataloger {
	return &Cataloger{
		store:     store,
		extension: strings.ToLower(extension),
		metrics:   m,
		logger:    slog.Default().With("component", "cataloger"),
	}
}

// Ingest processes a batch of change events. Each record is independent:
// malformed events and per-record store failures are reported as diagnostics
// and never abort the batch. Duplicate versions count as skipped.
func (c *Cataloger) Ingest(ctx context.Context, events []pipeline.ChangeEvent) pipeline.Summary {
	var summary pipeline.Summary
	for _, event := range events {
		if ctx.Err() != nil {
			// Abort-and-retry is safe: committed inserts stand, the
			// rest re-arrive via re-delivery.
			break
		}
		if !c.accepts(event.RelativePath) {
			summary.Skipped++
			c.skip("filtered")
			continue
		}
		if detail, ok := validate(event); !ok {
			summary.Skipped++
			summary.Errors = append(summary.Errors, pipeline.Diagnostic{
				Kind:   pipeline.DiagRecordSkipped,
				Path:   event.RelativePath,
				Detail: detail,
			})
			c.skip("malformed")
			c.logger.Warn("malformed change event skipped", "path", event.RelativePath, "detail", detail)
			continue
		}

		rec := pipeline.FileRecord{
			VersionKey:   event.VersionKey(),
			RelativePath: event.RelativePath,
			Size:         event.Size,
			LastModified: event.LastModified,
			SourceURL:    event.SourceURL,
		}
		inserted, err := c.store.InsertFileRecord(ctx, rec)
		if err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, pipeline.Diagnostic{
				Kind:       pipeline.DiagStoreFailed,
				Path:       event.RelativePath,
				VersionKey: rec.VersionKey,
				Detail:     err.Error(),
			})
			c.logger.Error("failed to insert file record", "path", event.RelativePath, "error", err)
			continue
		}
		if !inserted {
			summary.Skipped++
			c.skip("duplicate")
			c.logger.Debug("version already cataloged", "path", event.RelativePath, "version_key", rec.VersionKey)
			continue
		}
		summary.Processed++
		c.logger.Info("file cataloged",
			"path", event.RelativePath,
			"version_key", rec.VersionKey,
			"size", event.Size,
		)
	}
	return summary
}

func (c *Cataloger) skip(reason string) {
	if c.metrics != nil {
		c.metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// accepts reports whether the path matches the configured extension filter.
func (c *Cataloger) accepts(path string) bool {
	if c.extension == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(path), c.extension)
}

// validate checks the required event fields. Events that cannot yield a
// well-formed FileRecord are skipped rather than failing the batch.
func validate(event pipeline.ChangeEvent) (string, bool) {
	switch {
	case event.RelativePath == "":
		return "missing relative path", false
	case event.LastModified.IsZero():
		return "missing last-modified timestamp", false
	case event.SourceURL == "":
		return "missing source url", false
	}
	return "", true
}

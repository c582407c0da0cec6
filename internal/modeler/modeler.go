// Package modeler builds the read-optimized projection of extraction results:
// a left-outer join with the curated reference table on a key derived from
// the document ID, with the single-row operational-statistics aggregate
// cross-joined onto every row. The view is pure recomputation; the modeler
// persists no intermediate state of its own.
package modeler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/avaldria/reportwatch/internal/pipeline"
	"golang.org/x/sync/singleflight"
)

// ReferenceRow is one entry of the curated reference dataset.
type ReferenceRow struct {
	Key      string `json:"ref_key"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Region   string `json:"region"`
}

// OpsStats is the aggregate side of the view. The producing SQL aggregate
// yields exactly one row by construction; nil pointers mean the window held
// no data, and the view rows are still emitted with null stats columns.
type OpsStats struct {
	AvgDelayMinutes  *float64 `json:"avg_delay_minutes"`
	CancellationRate *float64 `json:"cancellation_rate"`
	SampleCount      int64    `json:"sample_count"`
}

// ViewRow is one output row: an extraction result with its (possibly
// unmatched) reference columns and the shared statistics.
type ViewRow struct {
	DocID            string    `json:"doc_id"`
	VersionKey       string    `json:"version_key"`
	PageCount        int       `json:"page_count"`
	ExtractedAt      time.Time `json:"extracted_at"`
	RefKey           string    `json:"ref_key"`
	RefName          *string   `json:"ref_name"`
	RefCategory      *string   `json:"ref_category"`
	RefRegion        *string   `json:"ref_region"`
	AvgDelayMinutes  *float64  `json:"avg_delay_minutes"`
	CancellationRate *float64  `json:"cancellation_rate"`
	StatsSampleCount int64     `json:"stats_sample_count"`
}

// ViewStore supplies the three relations the view is built from.
type ViewStore interface {
	ListExtractionResults(ctx context.Context) ([]pipeline.ExtractionResult, error)
	ReferenceRows(ctx context.Context) (map[string]ReferenceRow, error)
	OpsStats(ctx context.Context, windowDays int) (OpsStats, error)
}

// KeyFunc derives the reference join key from a document ID.
type KeyFunc func(docID string) string

// DefaultKeyFunc maps a document ID like "ua_2024_06" to the reference key
// "UA": the upper-cased token before the first underscore or hyphen.
func DefaultKeyFunc(docID string) string {
	cut := func(r rune) bool { return r == '_' || r == '-' }
	if i := strings.IndexFunc(docID, cut); i > 0 {
		docID = docID[:i]
	}
	return strings.ToUpper(docID)
}

// Modeler recomputes the view on demand. Concurrent rebuilds collapse into
// one via singleflight.
type Modeler struct {
	store      ViewStore
	keyFn      KeyFunc
	windowDays int
	group      singleflight.Group
	logger     *slog.Logger
}

// New creates a Modeler. A nil keyFn falls back to DefaultKeyFunc.
func New(store ViewStore, keyFn KeyFunc, windowDays int) *Modeler {
	if keyFn == nil {
		keyFn = DefaultKeyFunc
	}
	return &Modeler{
		store:      store,
		keyFn:      keyFn,
		windowDays: windowDays,
		logger:     slog.Default().With("component", "modeler"),
	}
}

// BuildView recomputes the full projection. Every extraction result yields
// exactly one row: unmatched reference keys keep the row with null reference
// columns, and the stats aggregate is attached to all rows unconditionally.
func (m *Modeler) BuildView(ctx context.Context) ([]ViewRow, error) {
	v, err, _ := m.group.Do("view", func() (any, error) {
		return m.buildView(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]ViewRow), nil
}

func (m *Modeler) buildView(ctx context.Context) ([]ViewRow, error) {
	results, err := m.store.ListExtractionResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading extraction results: %w", err)
	}
	refs, err := m.store.ReferenceRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading reference rows: %w", err)
	}
	stats, err := m.store.OpsStats(ctx, m.windowDays)
	if err != nil {
		return nil, fmt.Errorf("loading ops stats: %w", err)
	}

	rows := make([]ViewRow, 0, len(results))
	matched := 0
	for _, res := range results {
		row := ViewRow{
			DocID:            res.DocID,
			VersionKey:       res.VersionKey,
			PageCount:        res.PageCount,
			ExtractedAt:      res.ExtractedAt,
			RefKey:           m.keyFn(res.DocID),
			AvgDelayMinutes:  stats.AvgDelayMinutes,
			CancellationRate: stats.CancellationRate,
			StatsSampleCount: stats.SampleCount,
		}
		if ref, ok := refs[row.RefKey]; ok {
			row.RefName = &ref.Name
			row.RefCategory = &ref.Category
			row.RefRegion = &ref.Region
			matched++
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DocID != rows[j].DocID {
			return rows[i].DocID < rows[j].DocID
		}
		return rows[i].ExtractedAt.Before(rows[j].ExtractedAt)
	})

	m.logger.Info("view built",
		"rows", len(rows),
		"matched", matched,
		"unmatched", len(rows)-matched,
		"stats_samples", stats.SampleCount,
	)
	return rows, nil
}

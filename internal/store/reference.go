package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avaldria/reportwatch/internal/modeler"
)

// ReferenceRows loads the curated reference table keyed by ref_key.
func (s *Store) ReferenceRows(ctx context.Context) (map[string]modeler.ReferenceRow, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT ref_key, name, COALESCE(category, ''), COALESCE(region, '') FROM reference_entities`)
	if err != nil {
		return nil, fmt.Errorf("listing reference entities: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]modeler.ReferenceRow)
	for rows.Next() {
		var ref modeler.ReferenceRow
		if err := rows.Scan(&ref.Key, &ref.Name, &ref.Category, &ref.Region); err != nil {
			return nil, fmt.Errorf("scanning reference entity: %w", err)
		}
		refs[ref.Key] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reference entities: %w", err)
	}
	return refs, nil
}

// OpsStats aggregates the analytical relation over the given lookback window.
// The SQL aggregate yields exactly one row by construction; with no data in
// the window the averages come back NULL and the returned pointers are nil.
func (s *Store) OpsStats(ctx context.Context, windowDays int) (modeler.OpsStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	var stats modeler.OpsStats
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT avg(delay_minutes), avg(CASE WHEN cancelled THEN 1.0 ELSE 0.0 END), count(*)
		FROM ops_stats
		WHERE stat_date >= $1`, since).
		Scan(&stats.AvgDelayMinutes, &stats.CancellationRate, &stats.SampleCount)
	if err != nil {
		return modeler.OpsStats{}, fmt.Errorf("aggregating ops stats: %w", err)
	}
	return stats, nil
}

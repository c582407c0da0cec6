package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avaldria/reportwatch/internal/pipeline"
)

// InsertExtractionResult inserts a result, returning false when one already
// exists for the version key. First successful insert wins; losers of the
// race see a benign no-op.
func (s *Store) InsertExtractionResult(ctx context.Context, res pipeline.ExtractionResult) (bool, error) {
	metadata, err := json.Marshal(res.Metadata)
	if err != nil {
		return false, fmt.Errorf("encoding metadata for %s: %w", res.DocID, err)
	}
	r, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO extraction_results (version_key, doc_id, metadata, page_count, content)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version_key) DO NOTHING`,
		res.VersionKey, res.DocID, metadata, res.PageCount, res.Content)
	if err != nil {
		return false, fmt.Errorf("inserting extraction result %s: %w", res.VersionKey, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n > 0, nil
}

// ListExtractionResults returns all results ordered by document ID then
// extraction time. Content is excluded; the modeler joins on identity and
// page counts, not full text.
func (s *Store) ListExtractionResults(ctx context.Context) ([]pipeline.ExtractionResult, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT version_key, doc_id, metadata, page_count, extracted_at
		FROM extraction_results
		ORDER BY doc_id, extracted_at`)
	if err != nil {
		return nil, fmt.Errorf("listing extraction results: %w", err)
	}
	defer rows.Close()

	var results []pipeline.ExtractionResult
	for rows.Next() {
		var res pipeline.ExtractionResult
		var metadata []byte
		if err := rows.Scan(&res.VersionKey, &res.DocID, &metadata, &res.PageCount, &res.ExtractedAt); err != nil {
			return nil, fmt.Errorf("scanning extraction result: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &res.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", res.DocID, err)
			}
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating extraction results: %w", err)
	}
	return results, nil
}

// ResultCount returns the total number of extraction results.
func (s *Store) ResultCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT count(*) FROM extraction_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting extraction results: %w", err)
	}
	return n, nil
}

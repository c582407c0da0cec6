package store

import (
	"context"
	"fmt"

	"github.com/avaldria/reportwatch/internal/pipeline"
)

// InsertFileRecord inserts a catalog record, returning false when a record
// with the same version key already exists. The conflict target is the
// primary key, so concurrent inserts of the same version race safely: one
// wins, the rest observe a no-op.
func (s *Store) InsertFileRecord(ctx context.Context, rec pipeline.FileRecord) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO file_catalog (version_key, relative_path, size_bytes, last_modified, source_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version_key) DO NOTHING`,
		rec.VersionKey, rec.RelativePath, rec.Size, rec.LastModified, rec.SourceURL)
	if err != nil {
		return false, fmt.Errorf("inserting file record %s: %w", rec.RelativePath, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n > 0, nil
}

// ListPending returns cataloged versions with no extraction result, oldest
// first, up to limit (0 means no limit).
func (s *Store) ListPending(ctx context.Context, limit int) ([]pipeline.FileRecord, error) {
	query := `SELECT c.version_key, c.relative_path, c.size_bytes, c.last_modified, c.source_url, c.cataloged_at
		FROM file_catalog c
		LEFT JOIN extraction_results r ON r.version_key = c.version_key
		WHERE r.version_key IS NULL
		ORDER BY c.cataloged_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending files: %w", err)
	}
	defer rows.Close()

	var pending []pipeline.FileRecord
	for rows.Next() {
		var rec pipeline.FileRecord
		if err := rows.Scan(&rec.VersionKey, &rec.RelativePath, &rec.Size, &rec.LastModified, &rec.SourceURL, &rec.CatalogedAt); err != nil {
			return nil, fmt.Errorf("scanning pending file: %w", err)
		}
		pending = append(pending, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending files: %w", err)
	}
	return pending, nil
}

// PendingCount returns the size of the pending set.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT count(*)
		FROM file_catalog c
		LEFT JOIN extraction_results r ON r.version_key = c.version_key
		WHERE r.version_key IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending files: %w", err)
	}
	return n, nil
}

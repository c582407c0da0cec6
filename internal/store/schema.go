package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the pipeline tables. file_catalog and extraction_results are
// append-only; their primary keys are the uniqueness constraints that make
// every stage idempotent. reference_entities and ops_stats are read-only
// relations loaded by external tooling.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS file_catalog (
		version_key   TEXT PRIMARY KEY,
		relative_path TEXT NOT NULL,
		size_bytes    BIGINT NOT NULL DEFAULT 0,
		last_modified TIMESTAMPTZ NOT NULL,
		source_url    TEXT NOT NULL,
		cataloged_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_file_catalog_path ON file_catalog (relative_path)`,
	`CREATE TABLE IF NOT EXISTS extraction_results (
		version_key  TEXT PRIMARY KEY REFERENCES file_catalog (version_key),
		doc_id       TEXT NOT NULL,
		metadata     JSONB,
		page_count   INTEGER NOT NULL DEFAULT 0,
		content      TEXT NOT NULL DEFAULT '',
		extracted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_results_doc ON extraction_results (doc_id)`,
	`CREATE TABLE IF NOT EXISTS reference_entities (
		ref_key  TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		category TEXT,
		region   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS ops_stats (
		stat_date     DATE NOT NULL,
		ref_key       TEXT NOT NULL,
		delay_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		cancelled     BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ops_stats_date ON ops_stats (stat_date)`,
}

// EnsureSchema creates all tables and indexes if they do not exist, so
// workers can start against an empty database. The statements run in one
// transaction; a worker racing another's bootstrap sees either nothing or
// the full schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}

// Package store implements the durable PostgreSQL state shared by all
// pipeline stages: the append-only file catalog, the extraction results, and
// the read-only reference relations joined by the modeler. All mutation is
// insert-only; idempotency is enforced by primary-key conflicts, never by
// application-level locking.
package store

import (
	"github.com/avaldria/reportwatch/pkg/postgres"
)

// Store bundles the catalog, result, and reference queries over one
// connection pool.
type Store struct {
	db *postgres.Client
}

// New creates a Store over the given client.
func New(db *postgres.Client) *Store {
	return &Store{db: db}
}

// Package source defines the file-source collaborator observed by the
// watcher and its HTTP and local-directory implementations.
package source

import (
	"context"
	"time"
)

// File is one entry in a source listing.
type File struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// Source lists files in an external store. List must return the complete
// current listing; Refresh forces the backing listing to update and has no
// durable effect on pipeline state.
type Source interface {
	List(ctx context.Context) ([]File, error)
	Refresh(ctx context.Context) error
}

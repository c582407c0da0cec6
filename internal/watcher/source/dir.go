package source

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	apperrors "github.com/avaldria/reportwatch/pkg/errors"
)

// DirSource lists files under a local directory tree. The filesystem is its
// own listing, so Refresh is a no-op. File URLs use the file scheme so the
// extractor's fetcher can read them back.
type DirSource struct {
	root string
}

// NewDir creates a DirSource rooted at the given directory.
func NewDir(root string) *DirSource {
	return &DirSource{root: root}
}

// List walks the tree and returns one File per regular file, with paths
// relative to the root and normalised to forward slashes.
func (s *DirSource) List(ctx context.Context) ([]File, error) {
	var files []File
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("relativising %s: %w", path, err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		files = append(files, File{
			Path:         filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
			URL:          "file://" + filepath.ToSlash(abs),
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: walking %s: %v", apperrors.ErrSourceUnavailable, s.root, err)
	}
	return files, nil
}

// Refresh is a no-op for directory sources.
func (s *DirSource) Refresh(ctx context.Context) error {
	return nil
}

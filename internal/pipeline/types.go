// Package pipeline defines the shared types flowing between the watcher,
// cataloger, extractor, and modeler stages: change events, catalog records,
// extraction results, and per-invocation summaries.
package pipeline

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"time"
)

// ActionInsert is the only change action the pipeline models. Deletes and
// in-place updates are not tracked; a modified file shows up as a new version.
const ActionInsert = "INSERT"

// ChangeEvent announces a newly observed file version. Events are delivered
// at least once; consumers deduplicate on the derived version key.
type ChangeEvent struct {
	RelativePath string    `json:"relative_path"`
	Action       string    `json:"action"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	SourceURL    string    `json:"source_url"`
	ObservedAt   time.Time `json:"observed_at"`
}

// VersionKey derives the event's version key.
func (e ChangeEvent) VersionKey() string {
	return VersionKey(e.RelativePath, e.LastModified)
}

// FileRecord is one immutable catalog entry: a single version of a source
// file. Records are never mutated or deleted.
type FileRecord struct {
	VersionKey   string    `json:"version_key"`
	RelativePath string    `json:"relative_path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	SourceURL    string    `json:"source_url"`
	CatalogedAt  time.Time `json:"cataloged_at"`
}

// ExtractionResult holds the parsed output for one FileRecord. At most one
// result exists per version key; a new version of the same file gets its own
// result under its own key.
type ExtractionResult struct {
	DocID       string             `json:"doc_id"`
	VersionKey  string             `json:"version_key"`
	Metadata    map[string]*string `json:"metadata"`
	PageCount   int                `json:"page_count"`
	Content     string             `json:"content"`
	ExtractedAt time.Time          `json:"extracted_at"`
}

// Diagnostic kinds reported in stage summaries.
const (
	DiagRecordSkipped    = "record_skipped"
	DiagStoreFailed      = "store_failed"
	DiagExtractionFailed = "extraction_failed"
	DiagDuplicateVersion = "duplicate_version"
)

// Diagnostic describes a per-record problem that did not abort the stage.
type Diagnostic struct {
	Kind       string `json:"kind"`
	Path       string `json:"path,omitempty"`
	VersionKey string `json:"version_key,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Summary is returned by every stage entry point.
type Summary struct {
	Processed int          `json:"processed_count"`
	Skipped   int          `json:"skipped_count"`
	Errors    []Diagnostic `json:"errors,omitempty"`
}

// Add folds another summary into s.
func (s *Summary) Add(other Summary) {
	s.Processed += other.Processed
	s.Skipped += other.Skipped
	s.Errors = append(s.Errors, other.Errors...)
}

// VersionKey derives the identifier for one version of a file from its path
// and modification time. The same path with a new mtime yields a new key.
func VersionKey(relativePath string, lastModified time.Time) string {
	seed := fmt.Sprintf("%s|%d", relativePath, lastModified.UTC().UnixNano())
	return fmt.Sprintf("%x", sha256.Sum256([]byte(seed)))
}

// DocID derives the stable document identifier from a file path: the base
// name with its extension stripped ("reports/a.pdf" -> "a").
func DocID(relativePath string) string {
	base := path.Base(relativePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// TriggerEvent is published on the dependency topics (catalog-updates,
// extract-complete) when a stage made progress, waking the next stage.
type TriggerEvent struct {
	Stage     string    `json:"stage"`
	Inserted  int       `json:"inserted"`
	EmittedAt time.Time `json:"emitted_at"`
}

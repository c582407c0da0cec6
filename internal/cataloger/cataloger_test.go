package cataloger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avaldria/reportwatch/internal/pipeline"
)

type fakeCatalog struct {
	records map[string]pipeline.FileRecord
	failOn  string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[string]pipeline.FileRecord)}
}

func (f *fakeCatalog) InsertFileRecord(ctx context.Context, rec pipeline.FileRecord) (bool, error) {
	if f.failOn != "" && rec.RelativePath == f.failOn {
		return false, errors.New("connection reset")
	}
	if _, ok := f.records[rec.VersionKey]; ok {
		return false, nil
	}
	f.records[rec.VersionKey] = rec
	return true, nil
}

func event(path string, mtime time.Time) pipeline.ChangeEvent {
	return pipeline.ChangeEvent{
		RelativePath: path,
		Size:         42,
		LastModified: mtime,
		SourceURL:    "http://files/" + path,
	}
}

func TestIngestIdempotent(t *testing.T) {
	store := newFakeCatalog()
	c := New(store, ".pdf", nil)
	mtime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	events := []pipeline.ChangeEvent{event("a.pdf", mtime), event("b.pdf", mtime)}

	summary := c.Ingest(context.Background(), events)
	if summary.Processed != 2 || summary.Skipped != 0 {
		t.Fatalf("first ingest: %+v", summary)
	}

	// Replaying the same batch must insert nothing.
	summary = c.Ingest(context.Background(), events)
	if summary.Processed != 0 || summary.Skipped != 2 {
		t.Errorf("replayed ingest: %+v", summary)
	}
	if len(store.records) != 2 {
		t.Errorf("expected 2 records, got %d", len(store.records))
	}

	// A new mtime for a known path is a distinct version.
	summary = c.Ingest(context.Background(), []pipeline.ChangeEvent{event("a.pdf", mtime.Add(time.Hour))})
	if summary.Processed != 1 {
		t.Errorf("new version ingest: %+v", summary)
	}
	if len(store.records) != 3 {
		t.Errorf("expected 3 records after new version, got %d", len(store.records))
	}
}

func TestIngestExtensionFilter(t *testing.T) {
	store := newFakeCatalog()
	c := New(store, ".pdf", nil)
	mtime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	summary := c.Ingest(context.Background(), []pipeline.ChangeEvent{
		event("report.PDF", mtime),
		event("notes.txt", mtime),
		event("readme", mtime),
	})
	if summary.Processed != 1 || summary.Skipped != 2 {
		t.Errorf("expected 1 processed, 2 skipped, got %+v", summary)
	}
	// Filtered files are plain skips, not diagnostics.
	if len(summary.Errors) != 0 {
		t.Errorf("unexpected diagnostics: %+v", summary.Errors)
	}
}

func TestIngestMalformedEvent(t *testing.T) {
	store := newFakeCatalog()
	c := New(store, "", nil)
	mtime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	bad := event("bad.pdf", time.Time{})
	noURL := event("nourl.pdf", mtime)
	noURL.SourceURL = ""

	summary := c.Ingest(context.Background(), []pipeline.ChangeEvent{bad, noURL, event("ok.pdf", mtime)})
	if summary.Processed != 1 || summary.Skipped != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Errors) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(summary.Errors))
	}
	for _, d := range summary.Errors {
		if d.Kind != pipeline.DiagRecordSkipped {
			t.Errorf("diagnostic kind = %q, want %q", d.Kind, pipeline.DiagRecordSkipped)
		}
	}
}

func TestIngestStoreFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeCatalog()
	store.failOn = "b.pdf"
	c := New(store, ".pdf", nil)
	mtime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	summary := c.Ingest(context.Background(), []pipeline.ChangeEvent{
		event("a.pdf", mtime),
		event("b.pdf", mtime),
		event("c.pdf", mtime),
	})
	if summary.Processed != 2 {
		t.Errorf("expected records after the failure to still land, got %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Path != "b.pdf" {
		t.Errorf("expected one diagnostic for b.pdf, got %+v", summary.Errors)
	}
	// Store failures are a distinct kind so callers can retry them, unlike
	// malformed records.
	if summary.Errors[0].Kind != pipeline.DiagStoreFailed {
		t.Errorf("diagnostic kind = %q, want %q", summary.Errors[0].Kind, pipeline.DiagStoreFailed)
	}
}

package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/internal/watcher/source"
	apperrors "github.com/avaldria/reportwatch/pkg/errors"
)

type fakeSource struct {
	files     []source.File
	listErr   error
	refreshed int
}

func (s *fakeSource) List(ctx context.Context) ([]source.File, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.files, nil
}

func (s *fakeSource) Refresh(ctx context.Context) error {
	s.refreshed++
	return nil
}

var t1 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func listing(paths ...string) []source.File {
	files := make([]source.File, len(paths))
	for i, p := range paths {
		files[i] = source.File{Path: p, Size: 100, LastModified: t1, URL: "http://files/" + p}
	}
	return files
}

func TestPollRedeliversUntilMarked(t *testing.T) {
	src := &fakeSource{files: listing("a.pdf", "b.pdf")}
	w := New(src, NewMemoryChangeLog())
	ctx := context.Background()

	events, _, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Nothing marked yet, so the same events are re-delivered.
	again, _, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("expected re-delivery of 2 events, got %d", len(again))
	}

	if err := w.MarkSeen(ctx, events); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	final, known, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if len(final) != 0 || known != 2 {
		t.Errorf("after marking: got %d events, %d known; want 0 and 2", len(final), known)
	}
}

func TestPollDetectsNewVersionOfKnownPath(t *testing.T) {
	src := &fakeSource{files: listing("a.pdf")}
	w := New(src, NewMemoryChangeLog())
	ctx := context.Background()

	events, _, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := w.MarkSeen(ctx, events); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	firstKey := events[0].VersionKey()

	// Same path, newer mtime: a distinct version appears.
	src.files[0].LastModified = t1.Add(24 * time.Hour)
	events, _, err = w.Poll(ctx)
	if err != nil {
		t.Fatalf("poll after modify: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for modified file, got %d", len(events))
	}
	if events[0].VersionKey() == firstKey {
		t.Error("modified file produced the same version key")
	}
}

func TestRunEmitsAndMarks(t *testing.T) {
	src := &fakeSource{files: listing("a.pdf", "b.pdf")}
	w := New(src, NewMemoryChangeLog())
	ctx := context.Background()

	var emitted []pipeline.ChangeEvent
	emit := func(ctx context.Context, events []pipeline.ChangeEvent) error {
		emitted = append(emitted, events...)
		return nil
	}

	summary, err := w.Run(ctx, emit)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed != 2 || len(emitted) != 2 {
		t.Fatalf("expected 2 emitted, got summary %+v, emitted %d", summary, len(emitted))
	}
	if src.refreshed != 1 {
		t.Errorf("expected 1 refresh, got %d", src.refreshed)
	}

	// Second run with the unchanged listing is a no-op.
	summary, err = w.Run(ctx, emit)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 || summary.Skipped != 2 {
		t.Errorf("expected no-op second run, got %+v", summary)
	}
	if len(emitted) != 2 {
		t.Errorf("expected no further emissions, got %d total", len(emitted))
	}
}

func TestRunSourceUnavailable(t *testing.T) {
	src := &fakeSource{listErr: apperrors.ErrSourceUnavailable}
	w := New(src, NewMemoryChangeLog())

	emitCalled := false
	_, err := w.Run(context.Background(), func(ctx context.Context, events []pipeline.ChangeEvent) error {
		emitCalled = true
		return nil
	})
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if emitCalled {
		t.Error("no events should be emitted when the source is unavailable")
	}
}

func TestRunEmitFailureLeavesVersionsUnmarked(t *testing.T) {
	src := &fakeSource{files: listing("a.pdf")}
	w := New(src, NewMemoryChangeLog())
	ctx := context.Background()

	emitErr := errors.New("broker down")
	_, err := w.Run(ctx, func(ctx context.Context, events []pipeline.ChangeEvent) error {
		return emitErr
	})
	if !errors.Is(err, emitErr) {
		t.Fatalf("expected emit error, got %v", err)
	}

	// The failed event must be re-delivered next run.
	events, _, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected event to remain unmarked, got %d events", len(events))
	}
}

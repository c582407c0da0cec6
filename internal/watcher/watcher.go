// Package watcher diffs source listings against a change log of
// already-announced file versions and emits one ChangeEvent per new version.
// Delivery is at least once: a version stays eligible for re-emission until
// it is marked seen, and downstream stages deduplicate on the version key.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/internal/watcher/source"
)

// ChangeLog tracks which file versions have already been announced. It is a
// cache, not a source of truth: losing it only causes re-delivery, which the
// cataloger's uniqueness constraint absorbs.
type ChangeLog interface {
	Seen(ctx context.Context, versionKey string) (bool, error)
	Mark(ctx context.Context, versionKeys ...string) error
}

// Watcher polls a Source and produces change events for unseen versions.
type Watcher struct {
	source    source.Source
	changeLog ChangeLog
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Watcher over the given source and change log.
func New(src source.Source, log ChangeLog) *Watcher {
	return &Watcher{
		source:    src,
		changeLog: log,
		logger:    slog.Default().With("component", "watcher"),
		now:       time.Now,
	}
}

// Refresh forces the source listing to update. It touches no pipeline state.
func (w *Watcher) Refresh(ctx context.Context) error {
	return w.source.Refresh(ctx)
}

// Poll lists the source and returns one ChangeEvent per file version not yet
// marked seen. Poll itself has no side effects, so calling it repeatedly
// before MarkSeen re-delivers the same events.
func (w *Watcher) Poll(ctx context.Context) ([]pipeline.ChangeEvent, int, error) {
	files, err := w.source.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("listing source: %w", err)
	}

	var events []pipeline.ChangeEvent
	known := 0
	observedAt := w.now().UTC()
	for _, f := range files {
		key := pipeline.VersionKey(f.Path, f.LastModified)
		seen, err := w.changeLog.Seen(ctx, key)
		if err != nil {
			return nil, 0, fmt.Errorf("checking change log for %s: %w", f.Path, err)
		}
		if seen {
			known++
			continue
		}
		events = append(events, pipeline.ChangeEvent{
			RelativePath: f.Path,
			Action:       pipeline.ActionInsert,
			Size:         f.Size,
			LastModified: f.LastModified,
			SourceURL:    f.URL,
			ObservedAt:   observedAt,
		})
	}
	w.logger.Debug("source polled", "listed", len(files), "new", len(events), "known", known)
	return events, known, nil
}

// MarkSeen records the events' version keys in the change log so they are
// not re-emitted. Called only after the events were handed off.
func (w *Watcher) MarkSeen(ctx context.Context, events []pipeline.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.VersionKey()
	}
	if err := w.changeLog.Mark(ctx, keys...); err != nil {
		return fmt.Errorf("marking %d versions seen: %w", len(keys), err)
	}
	return nil
}

// Run performs one full watcher invocation: refresh, poll, hand events to
// emit, then mark them seen. A source failure aborts the invocation with no
// partial emission bookkeeping.
func (w *Watcher) Run(ctx context.Context, emit func(ctx context.Context, events []pipeline.ChangeEvent) error) (pipeline.Summary, error) {
	if err := w.Refresh(ctx); err != nil {
		return pipeline.Summary{}, fmt.Errorf("refreshing source: %w", err)
	}
	events, known, err := w.Poll(ctx)
	if err != nil {
		return pipeline.Summary{}, err
	}
	summary := pipeline.Summary{Skipped: known}
	if len(events) == 0 {
		return summary, nil
	}
	if err := emit(ctx, events); err != nil {
		return summary, fmt.Errorf("emitting %d change events: %w", len(events), err)
	}
	if err := w.MarkSeen(ctx, events); err != nil {
		// Events were already emitted; failing to mark only causes
		// re-delivery on the next run.
		w.logger.Warn("change log update failed, events will be re-delivered", "error", err)
	}
	summary.Processed = len(events)
	w.logger.Info("watcher run complete", "emitted", len(events), "known", known)
	return summary, nil
}

package cataloger

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestHandleEvent(t *testing.T) {
	store := newFakeCatalog()
	c := New(store, ".pdf", nil)
	notified := 0
	handler := HandleEvent(c, func(ctx context.Context, inserted int) { notified += inserted })

	payload, err := json.Marshal(event("a.pdf", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	if err := handler(context.Background(), []byte("a.pdf"), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.records) != 1 || notified != 1 {
		t.Errorf("records = %d, notified = %d", len(store.records), notified)
	}

	// Replay of the same message is committed without a second notification.
	if err := handler(context.Background(), []byte("a.pdf"), payload); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(store.records) != 1 || notified != 1 {
		t.Errorf("after replay: records = %d, notified = %d", len(store.records), notified)
	}
}

func TestHandleEventUndecodablePayload(t *testing.T) {
	store := newFakeCatalog()
	handler := HandleEvent(New(store, ".pdf", nil), nil)

	// Garbage must be committed (nil error), not retried forever.
	if err := handler(context.Background(), nil, []byte("{not json")); err != nil {
		t.Fatalf("expected nil for undecodable payload, got %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("no record may be inserted, got %d", len(store.records))
	}
}

func TestHandleEventStoreFailureIsRetried(t *testing.T) {
	store := newFakeCatalog()
	store.failOn = "a.pdf"
	handler := HandleEvent(New(store, ".pdf", nil), nil)
	payload, _ := json.Marshal(event("a.pdf", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))

	// A transient store failure must surface as an error so the offset is
	// not committed and the broker redelivers the event.
	if err := handler(context.Background(), []byte("a.pdf"), payload); err == nil {
		t.Fatal("expected error on store failure")
	}
	if len(store.records) != 0 {
		t.Fatalf("no record may exist yet, got %d", len(store.records))
	}

	// Redelivery after the store recovers lands the record.
	store.failOn = ""
	if err := handler(context.Background(), []byte("a.pdf"), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(store.records) != 1 {
		t.Errorf("records = %d, want 1", len(store.records))
	}
}

func TestHandleEventMalformedEventCommits(t *testing.T) {
	store := newFakeCatalog()
	handler := HandleEvent(New(store, "", nil), nil)

	// Decodable but invalid: no mtime. Redelivery would never help, so the
	// message is committed and the problem reported as a diagnostic.
	payload, _ := json.Marshal(event("bad.pdf", time.Time{}))
	if err := handler(context.Background(), nil, payload); err != nil {
		t.Fatalf("expected nil for malformed event, got %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("no record may be inserted, got %d", len(store.records))
	}
}

func TestHandleEventNilNotify(t *testing.T) {
	store := newFakeCatalog()
	handler := HandleEvent(New(store, ".pdf", nil), nil)
	payload, _ := json.Marshal(event("a.pdf", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	if err := handler(context.Background(), nil, payload); err != nil {
		t.Fatalf("handle with nil notify: %v", err)
	}
	if len(store.records) != 1 {
		t.Errorf("records = %d, want 1", len(store.records))
	}
}

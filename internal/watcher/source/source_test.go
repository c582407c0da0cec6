package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avaldria/reportwatch/pkg/config"
	apperrors "github.com/avaldria/reportwatch/pkg/errors"
)

func TestDirSourceList(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "2024", "06"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a.pdf", filepath.Join("2024", "06", "b.pdf")} {
		if err := os.WriteFile(filepath.Join(root, p), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := NewDir(root).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	byPath := make(map[string]File)
	for _, f := range files {
		byPath[f.Path] = f
	}
	b, ok := byPath["2024/06/b.pdf"]
	if !ok {
		t.Fatalf("missing relative slash path, got %v", files)
	}
	if !strings.HasPrefix(b.URL, "file://") {
		t.Errorf("URL = %q, want file scheme", b.URL)
	}
	if b.Size != 4 || b.LastModified.IsZero() {
		t.Errorf("unexpected file metadata: %+v", b)
	}
	if b.LastModified.Location() != time.UTC {
		t.Errorf("mtime not normalised to UTC: %v", b.LastModified)
	}
}

func TestDirSourceMissingRoot(t *testing.T) {
	_, err := NewDir("/nonexistent/reports").List(context.Background())
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestHTTPSourceList(t *testing.T) {
	listing := []File{
		{Path: "a.pdf", Size: 10, LastModified: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), URL: "http://files/a.pdf"},
	}
	var refreshed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/files":
			json.NewEncoder(w).Encode(listing)
		case r.Method == http.MethodPost && r.URL.Path == "/refresh":
			refreshed++
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src := NewHTTP(config.SourceConfig{BaseURL: server.URL, HTTPTimeout: time.Second})
	if err := src.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed != 1 {
		t.Errorf("refresh count = %d", refreshed)
	}
	files, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0].Path != "a.pdf" {
		t.Errorf("unexpected listing: %+v", files)
	}
}

func TestHTTPSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewHTTP(config.SourceConfig{BaseURL: server.URL, HTTPTimeout: time.Second})
	if _, err := src.List(context.Background()); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("list: expected ErrSourceUnavailable, got %v", err)
	}
	if err := src.Refresh(context.Background()); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("refresh: expected ErrSourceUnavailable, got %v", err)
	}

	// Connection-level failure maps the same way.
	server.Close()
	if _, err := src.List(context.Background()); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("closed server: expected ErrSourceUnavailable, got %v", err)
	}
}

package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/avaldria/reportwatch/pkg/config"
)

func TestSourceFetcherFileScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF content"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewSourceFetcher(config.ExtractorConfig{})
	data, err := f.Fetch(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "%PDF content" {
		t.Errorf("unexpected bytes: %q", data)
	}

	if _, err := f.Fetch(context.Background(), "file://"+filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSourceFetcherHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/a.pdf" {
			w.Write([]byte("%PDF over http"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewSourceFetcher(config.ExtractorConfig{})
	data, err := f.Fetch(context.Background(), server.URL+"/files/a.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "%PDF over http" {
		t.Errorf("unexpected bytes: %q", data)
	}

	if _, err := f.Fetch(context.Background(), server.URL+"/files/missing.pdf"); err == nil {
		t.Error("expected error for 404")
	}
}

package parser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avaldria/reportwatch/pkg/config"
	apperrors "github.com/avaldria/reportwatch/pkg/errors"
)

func newRemote(url string) *Remote {
	return NewRemote(config.ExtractorConfig{ParserURL: url, ParseTimeout: time.Second})
}

func TestRemoteParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF raw bytes" {
			t.Errorf("unexpected body %q", body)
		}
		title := "June Report"
		json.NewEncoder(w).Encode(Output{
			Metadata:  map[string]*string{"title": &title, "author": nil},
			PageCount: 12,
			Text:      "page one",
		})
	}))
	defer server.Close()

	out, err := newRemote(server.URL).Parse(context.Background(), []byte("%PDF raw bytes"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.PageCount != 12 || out.Text != "page one" {
		t.Errorf("unexpected output: %+v", out)
	}
	if v := out.Metadata["title"]; v == nil || *v != "June Report" {
		t.Errorf("metadata title = %v", v)
	}
	if v, ok := out.Metadata["author"]; !ok || v != nil {
		t.Errorf("null metadata value must survive decoding, got %v (present %v)", v, ok)
	}
}

func TestRemoteParseServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := newRemote(server.URL).Parse(context.Background(), []byte("x")); !errors.Is(err, apperrors.ErrParserUnavailable) {
		t.Errorf("5xx: expected ErrParserUnavailable, got %v", err)
	}

	server.Close()
	if _, err := newRemote(server.URL).Parse(context.Background(), []byte("x")); !errors.Is(err, apperrors.ErrParserUnavailable) {
		t.Errorf("transport failure: expected ErrParserUnavailable, got %v", err)
	}
}

func TestRemoteParseUnreadableInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "encrypted document", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := newRemote(server.URL).Parse(context.Background(), []byte("garbage"))
	if err == nil {
		t.Fatal("expected error for unreadable input")
	}
	// A bad file is the file's fault, not the service's: it must not look
	// like an outage to the circuit breaker.
	if errors.Is(err, apperrors.ErrParserUnavailable) {
		t.Errorf("4xx must not map to ErrParserUnavailable: %v", err)
	}
	if !strings.Contains(err.Error(), "encrypted document") {
		t.Errorf("error should carry the service detail: %v", err)
	}
}

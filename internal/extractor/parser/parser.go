// Package parser defines the content-extraction collaborator. The pipeline
// treats parsing as an opaque capability behind a one-method interface so the
// extractor is testable with a deterministic stub; the production
// implementation calls an external parse service over HTTP.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avaldria/reportwatch/pkg/config"
	apperrors "github.com/avaldria/reportwatch/pkg/errors"
)

// Output is the structured result of parsing one file. Per-page failures
// inside the parse service degrade to empty text for that page; only a file
// that cannot be opened at all fails the whole Parse call.
type Output struct {
	Metadata  map[string]*string `json:"metadata"`
	PageCount int                `json:"page_count"`
	Text      string             `json:"text"`
}

// Parser extracts structured content from raw file bytes.
type Parser interface {
	Parse(ctx context.Context, data []byte) (Output, error)
}

// Remote calls an external parse service: POST the raw bytes, receive an
// Output as JSON.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a Remote parser from config.
func NewRemote(cfg config.ExtractorConfig) *Remote {
	timeout := cfg.ParseTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Remote{
		url:    cfg.ParserURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Parse sends the file bytes to the parse service. Transport failures map to
// ErrParserUnavailable (the service is down, trip the breaker); a 4xx means
// the file itself is unreadable and is reported as a plain parse error.
func (r *Remote) Parse(ctx context.Context, data []byte) (Output, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(data))
	if err != nil {
		return Output{}, fmt.Errorf("building parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", apperrors.ErrParserUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Output{}, fmt.Errorf("%w: parse service returned %d", apperrors.ErrParserUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Output{}, fmt.Errorf("unreadable input (%d): %s", resp.StatusCode, body)
	}

	var out Output
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Output{}, fmt.Errorf("decoding parse response: %w", err)
	}
	return out, nil
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avaldria/reportwatch/pkg/config"
	apperrors "github.com/avaldria/reportwatch/pkg/errors"
)

// HTTPSource reads listings from a file-listing service exposing
// GET {base}/files and POST {base}/refresh.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates an HTTPSource from config.
func NewHTTP(cfg config.SourceConfig) *HTTPSource {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// List fetches the current listing. Any transport or non-200 failure is
// reported as ErrSourceUnavailable so the stage invocation aborts cleanly.
func (s *HTTPSource) List(ctx context.Context) ([]File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/files", nil)
	if err != nil {
		return nil, fmt.Errorf("building listing request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: listing returned %d", apperrors.ErrSourceUnavailable, resp.StatusCode)
	}
	var files []File
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("%w: decoding listing: %v", apperrors.ErrSourceUnavailable, err)
	}
	return files, nil
}

// Refresh asks the listing service to rescan its backing store.
func (s *HTTPSource) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/refresh", nil)
	if err != nil {
		return fmt.Errorf("building refresh request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: refresh returned %d", apperrors.ErrSourceUnavailable, resp.StatusCode)
	}
	return nil
}

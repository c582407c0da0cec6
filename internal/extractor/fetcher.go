package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avaldria/reportwatch/pkg/config"
)

// Fetcher retrieves the raw bytes of a cataloged file via its source URL.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// SourceFetcher fetches over HTTP(S) and, for directory sources, the file
// scheme.
type SourceFetcher struct {
	client *http.Client
}

// NewSourceFetcher creates a SourceFetcher with the configured timeout.
func NewSourceFetcher(cfg config.ExtractorConfig) *SourceFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SourceFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch returns the file bytes behind sourceURL.
func (f *SourceFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	if strings.HasPrefix(sourceURL, "file://") {
		u, err := url.Parse(sourceURL)
		if err != nil {
			return nil, fmt.Errorf("parsing source url %s: %w", sourceURL, err)
		}
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", u.Path, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", sourceURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", sourceURL, err)
	}
	return data, nil
}

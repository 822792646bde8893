package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxPageBytes = 2 * 1024 * 1024

// Fetcher retrieves the HTML document behind a page URL. Implementations
// report failures as errors; the resolver converts every failure into an
// absent result at its own boundary.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher is the production Fetcher backed by net/http.
type HTTPFetcher struct {
	log    zerolog.Logger
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher with a bounded request timeout so a
// stuck host can never wedge queue normalization.
func NewHTTPFetcher(log zerolog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		log: log,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchHTML downloads the page body. Non-2xx statuses, network failures and
// blank URLs are errors; cancellation is cooperative through ctx.
func (f *HTTPFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return "", fmt.Errorf("empty page url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "vidwall/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	f.log.Debug().Str("url", pageURL).Int("bytes", len(body)).Msg("page fetched")
	return string(body), nil
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"propscout/config"
	"propscout/httputil"
	"propscout/logging"
)

// ErrNotFound is returned when a source page no longer exists.
var ErrNotFound = errors.New("page not found")

const maxPageSize = 10 << 20

// Fetcher retrieves the HTML of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher fetches pages over plain HTTP with a browser-like header set.
// Requests are spaced by the configured rate limit and retried on transport
// errors and 5xx responses.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	retry     httputil.Retry
	userAgent string
}

func NewHTTPFetcher(client *http.Client, cfg config.FetchConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:    client,
		limiter:   httputil.NewLimiter(cfg.RateLimit),
		retry:     httputil.Retry{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second},
		userAgent: cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var body string
	err := f.retry.Do(ctx, "fetch "+pageURL, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", httputil.ErrPermanent, err)
		}

		var err error
		body, err = f.fetchOnce(ctx, pageURL)
		return err
	})
	return body, err
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", httputil.ErrPermanent, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", fmt.Errorf("%s: %w (%w)", pageURL, ErrNotFound, httputil.ErrPermanent)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%s: status %d", pageURL, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%s: status %d: %w", pageURL, resp.StatusCode, httputil.ErrPermanent)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", err
	}
	logging.Debugf("Fetched %s (%d bytes)", pageURL, len(data))
	return string(data), nil
}

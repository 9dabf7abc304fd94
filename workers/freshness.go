package workers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"propscout/httputil"
	"propscout/logging"
	"propscout/models"
	"propscout/storage"
)

// FreshnessWorker re-checks the listing URLs of the cached result set and
// reports the ones that have been taken down.
type FreshnessWorker struct {
	cache      *storage.FileCache
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	triggerCh  chan struct{}
	logFunc    LogFunc
}

// CheckResult is the outcome of checking one listing URL.
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Error      error
}

// FreshnessReport summarizes one pass over the cached listings.
type FreshnessReport struct {
	Checked  int
	Delisted []string
	Errors   int
}

func NewFreshnessWorker(cache *storage.FileCache, client *http.Client, minDelay time.Duration, userAgent string) *FreshnessWorker {
	noRedirects := *client
	noRedirects.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &FreshnessWorker{
		cache:      cache,
		httpClient: &noRedirects,
		limiter:    httputil.NewLimiter(minDelay),
		userAgent:  userAgent,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *FreshnessWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *FreshnessWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run checks the cached listings every interval until ctx is done.
func (w *FreshnessWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Infof("Freshness worker stopping")
			return
		case <-ticker.C:
			w.CheckCached(ctx)
		case <-w.triggerCh:
			logging.Infof("Freshness worker triggered manually")
			w.CheckCached(ctx)
		}
	}
}

// CheckCached checks every listing URL in the cached entry. An empty or
// unreadable cache yields an empty report.
func (w *FreshnessWorker) CheckCached(ctx context.Context) FreshnessReport {
	var report FreshnessReport

	entry, err := w.cache.Load()
	if err != nil {
		logging.Debugf("Freshness: no cached results: %v", err)
		return report
	}
	props, err := entry.Properties()
	if err != nil {
		logging.Warnf("Freshness: cached results unreadable: %v", err)
		return report
	}

	for _, p := range props {
		if p.Listing.URL == "" {
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return report
		}

		result := w.Check(ctx, p.Listing.URL)
		report.Checked++

		switch {
		case result.Error != nil:
			report.Errors++
			logging.Warnf("Freshness: error checking %s: %v", p.Listing.URL, result.Error)
		case !result.IsLive:
			report.Delisted = append(report.Delisted, p.Listing.URL)
			logging.Infof("Freshness: listing delisted (status %d): %s", result.StatusCode, p.Listing.URL)
		}
	}

	if report.Checked > 0 {
		msg := fmt.Sprintf("Checked %d cached listings", report.Checked)
		if len(report.Delisted) > 0 {
			msg += fmt.Sprintf(", %d delisted", len(report.Delisted))
		}
		if report.Errors > 0 {
			msg += fmt.Sprintf(", %d errors", report.Errors)
		}
		w.logFunc(models.LogLevelInfo, "freshness", msg)
	}
	return report
}

// Check sends a HEAD request and classifies the listing from the status code.
func (w *FreshnessWorker) Check(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, listingURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		result.IsLive = false
	case http.StatusMovedPermanently, http.StatusFound:
		result.IsLive = !isDelistRedirect(resp.Header.Get("Location"))
	default:
		// Anything else, including blocks, counts as still listed.
		result.IsLive = true
	}
	return result
}

// isDelistRedirect reports whether a redirect target looks like a search or
// error page rather than the listing.
func isDelistRedirect(location string) bool {
	location = strings.ToLower(location)
	for _, pattern := range []string{"/search", "/map", "notfound", "not-found", "error"} {
		if strings.Contains(location, pattern) {
			return true
		}
	}
	return false
}

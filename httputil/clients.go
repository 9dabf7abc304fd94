package httputil

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"propscout/config"
	"propscout/logging"
)

type Clients struct {
	Scraping *http.Client // proxied when PROXY_URL is set, for listing sites
	API      *http.Client // direct, for the geocoder
}

func NewClients(cfg *config.FetchConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			logging.Warnf("Ignoring invalid PROXY_URL: %v", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Clients{
		Scraping: &http.Client{Timeout: timeout, Transport: transport},
		API:      &http.Client{Timeout: timeout},
	}
}

// NewLimiter allows one request per minDelay. A zero delay disables limiting.
func NewLimiter(minDelay time.Duration) *rate.Limiter {
	if minDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minDelay), 1)
}

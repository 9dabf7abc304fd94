package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"propscout/config"
	"propscout/httputil"
	"propscout/identity"
	"propscout/models"
)

// Geocoder resolves a free-text address. found is false when the provider
// has no match; err is reserved for transport and provider failures.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (coords models.Coordinates, found bool, err error)
}

type geocodeResult struct {
	coords models.Coordinates
	found  bool
}

// Nominatim geocodes through an OpenStreetMap Nominatim endpoint. Results,
// including misses, are memoized by normalized address for the life of the
// client.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter

	mu   sync.Mutex
	memo map[string]geocodeResult
}

func NewNominatim(cfg config.GeocoderConfig, client *http.Client, minDelay time.Duration) *Nominatim {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    client,
		limiter:   httputil.NewLimiter(minDelay),
		memo:      make(map[string]geocodeResult),
	}
}

func (n *Nominatim) Geocode(ctx context.Context, address string) (models.Coordinates, bool, error) {
	key := identity.NormalizeAddress(address)
	if key == "" {
		return models.Coordinates{}, false, nil
	}

	n.mu.Lock()
	cached, ok := n.memo[key]
	n.mu.Unlock()
	if ok {
		return cached.coords, cached.found, nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return models.Coordinates{}, false, err
	}

	coords, found, err := n.search(ctx, address)
	if err != nil {
		return models.Coordinates{}, false, err
	}

	n.mu.Lock()
	n.memo[key] = geocodeResult{coords: coords, found: found}
	n.mu.Unlock()

	return coords, found, nil
}

func (n *Nominatim) search(ctx context.Context, address string) (models.Coordinates, bool, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, false, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Coordinates{}, false, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Coordinates{}, false, fmt.Errorf("geocode %q: status %d: %s", address, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinates{}, false, fmt.Errorf("geocode %q: decode: %w", address, err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, false, fmt.Errorf("geocode %q: bad latitude %q", address, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, false, fmt.Errorf("geocode %q: bad longitude %q", address, results[0].Lon)
	}

	return models.Coordinates{Latitude: lat, Longitude: lon}, true, nil
}

package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RATE_LIMIT_MS", "1500")
	t.Setenv("REQUEST_TIMEOUT", "20")
	t.Setenv("GEOCODER_USER_AGENT", "propscout-test")
}

func TestLoadRequiresRateLimitAndCredentials(t *testing.T) {
	t.Setenv("RATE_LIMIT_MS", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("GEOCODER_USER_AGENT", "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected config error")
	}

	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(cfgErr.Missing) != 3 {
		t.Fatalf("expected 3 missing keys, got %v", cfgErr.Missing)
	}
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_MS", "fast")

	_, err := Load()
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if _, ok := cfgErr.Invalid["RATE_LIMIT_MS"]; !ok {
		t.Fatalf("expected RATE_LIMIT_MS to be reported invalid: %v", cfgErr)
	}
}

func TestLoadAppliesEnvAndDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AVG_PRICE_PER_SQFT", "450")
	t.Setenv("DEFAULT_MIN_PRICE", "")
	t.Setenv("SCRAPE_INTERVAL", "6h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Fetch.RateLimit != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s rate limit, got %s", cfg.Fetch.RateLimit)
	}
	if cfg.Fetch.Timeout != 20*time.Second {
		t.Fatalf("expected 20s timeout, got %s", cfg.Fetch.Timeout)
	}
	if cfg.Scoring.AvgPricePerSqFt != 450 {
		t.Fatalf("expected avg price per sqft 450, got %v", cfg.Scoring.AvgPricePerSqFt)
	}
	if cfg.Defaults.MinPrice != 300_000 {
		t.Fatalf("expected default min price 300000, got %v", cfg.Defaults.MinPrice)
	}
	if cfg.Scheduler.Interval != 6*time.Hour {
		t.Fatalf("expected 6h interval, got %s", cfg.Scheduler.Interval)
	}
	sum := cfg.Scoring.PriceWeight + cfg.Scoring.LocationWeight + cfg.Scoring.DetailsWeight + cfg.Scoring.InvestmentWeight
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("default weights must sum to 1")
	}
}

func TestLoadSiteConfigs(t *testing.T) {
	dir := t.TempDir()
	site := `id: redfin
name: Redfin
domains: [redfin.com]
card: .HomeCardContainer
selectors:
  title: .homeAddress
  price: .homecardV2Price
`
	if err := os.WriteFile(filepath.Join(dir, "redfin.yaml"), []byte(site), 0644); err != nil {
		t.Fatalf("write site: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	cfg := &Config{}
	if err := cfg.LoadSiteConfigs(dir); err != nil {
		t.Fatalf("load sites: %v", err)
	}

	got, ok := cfg.Sites["redfin"]
	if !ok {
		t.Fatalf("expected redfin site, got %v", cfg.Sites)
	}
	if got.Card != ".HomeCardContainer" || got.Selectors["price"] != ".homecardV2Price" {
		t.Fatalf("unexpected site config: %+v", got)
	}
	if len(got.Domains) != 1 || got.Domains[0] != "redfin.com" {
		t.Fatalf("unexpected domains: %v", got.Domains)
	}
}

func TestLoadSiteConfigsMissingDir(t *testing.T) {
	cfg := &Config{}
	if err := cfg.LoadSiteConfigs(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
}

func TestLoadCriteria(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	body := `location: Oakland, CA
price_range:
  max: 950000
preferences:
  target_sqft: 1400
  required_amenities: [parking, yard]
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write criteria: %v", err)
	}

	defaults := SearchDefaults{MinPrice: 300_000, MaxPrice: 800_000, Location: "San Francisco, CA"}
	c, err := LoadCriteria(path, defaults)
	if err != nil {
		t.Fatalf("load criteria: %v", err)
	}
	if c.Location != "Oakland, CA" {
		t.Fatalf("unexpected location %q", c.Location)
	}
	if c.PriceRange.Min != 300_000 || c.PriceRange.Max != 950_000 {
		t.Fatalf("unexpected price range %+v", c.PriceRange)
	}
	if c.Preferences.TargetSqFt != 1400 || len(c.Preferences.RequiredAmenities) != 2 {
		t.Fatalf("unexpected preferences %+v", c.Preferences)
	}
}

func TestLoadCriteriaRejectsInvertedRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	if err := os.WriteFile(path, []byte("price_range: {min: 900000, max: 100000}\n"), 0644); err != nil {
		t.Fatalf("write criteria: %v", err)
	}
	if _, err := LoadCriteria(path, SearchDefaults{}); err == nil {
		t.Fatalf("expected error for min > max")
	}
}

func TestLoadSavedSearchURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	body := `location: Berkeley, CA
urls:
  - https://homes.example.com/search?city=berkeley
  - https://homes.example.com/search?city=albany
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write criteria: %v", err)
	}

	search, err := LoadSavedSearch(path, SearchDefaults{MinPrice: 1, MaxPrice: 2})
	if err != nil {
		t.Fatalf("load saved search: %v", err)
	}
	if search.Criteria.Location != "Berkeley, CA" || len(search.URLs) != 2 {
		t.Fatalf("unexpected saved search %+v", search)
	}
	if search.Criteria.PriceRange.Max != 2 {
		t.Fatalf("expected default max price, got %+v", search.Criteria.PriceRange)
	}
}

func TestLoadRejectsNonFiniteDefaultPrices(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		max     string
		wantKey string
	}{
		{"infinite max", "300000", "Inf", "DEFAULT_MAX_PRICE"},
		{"nan min", "NaN", "800000", "DEFAULT_MIN_PRICE"},
		{"negative min", "-5", "800000", "DEFAULT_MIN_PRICE"},
		{"inverted", "900000", "800000", "DEFAULT_MIN_PRICE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("DEFAULT_MIN_PRICE", tt.min)
			t.Setenv("DEFAULT_MAX_PRICE", tt.max)

			_, err := Load()
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if _, ok := cfgErr.Invalid[tt.wantKey]; !ok {
				t.Fatalf("expected %s to be reported invalid: %v", tt.wantKey, cfgErr)
			}
		})
	}
}

func TestLoadSavedSearchRejectsNonFiniteBounds(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"infinite max", "price_range: {min: 300000, max: .inf}\n"},
		{"nan min", "price_range: {min: .nan, max: 800000}\n"},
		{"negative infinite min", "price_range: {min: -.inf, max: 800000}\n"},
		{"infinite target sqft", "preferences: {target_sqft: .inf}\n"},
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "criteria.yaml")
		if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
			t.Fatalf("write criteria: %v", err)
		}
		if _, err := LoadSavedSearch(path, SearchDefaults{MinPrice: 300_000, MaxPrice: 800_000}); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

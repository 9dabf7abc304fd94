package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scoring       ScoringConfig
	Fetch         FetchConfig
	Geocoder      GeocoderConfig
	Validation    ValidationConfig
	Defaults      SearchDefaults
	Scheduler     SchedulerConfig
	S3            S3Config
	CachePath     string
	DBPath        string
	PostgresURL   string
	CriteriaPath  string
	Neighborhoods string
	LogLevel      string
	LogFile       string
	Sites         map[string]*SiteConfig
}

// ScoringConfig holds the weights and thresholds of the match score.
type ScoringConfig struct {
	PriceWeight      float64
	LocationWeight   float64
	DetailsWeight    float64
	InvestmentWeight float64

	// DistanceSteps must be sorted by MaxMiles.
	DistanceSteps []DistanceStep

	AvgPricePerSqFt    float64
	PrimeNeighborhood  float64
	NewConstructionAge int
	MaintenanceRiskAge int
	NegotiationMargin  float64
	LongCommuteMiles   float64
	GreatLocationMiles float64
	StrongInvestment   float64
	WeakInvestment     float64
}

type DistanceStep struct {
	MaxMiles   float64
	Multiplier float64
}

type FetchConfig struct {
	RateLimit  time.Duration
	Timeout    time.Duration
	MaxRetries int
	ProxyURL   string
	UserAgent  string
}

type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
}

type ValidationConfig struct {
	PriceWarnMin float64
	PriceWarnMax float64
}

type SearchDefaults struct {
	MinPrice float64
	MaxPrice float64
	Location string
}

type SchedulerConfig struct {
	Interval  time.Duration
	Cron      string
	Freshness time.Duration // 0 disables the listing freshness worker
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Key             string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// SiteConfig describes how listings are pulled out of one site's pages.
type SiteConfig struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Domains   []string          `yaml:"domains"`
	Render    string            `yaml:"render"`
	Card      string            `yaml:"card"`
	Selectors map[string]string `yaml:"selectors"`
}

// Error reports configuration that must be present before a search can run.
type Error struct {
	Missing []string
	Invalid map[string]string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	for key, reason := range e.Invalid {
		parts = append(parts, fmt.Sprintf("invalid %s: %s", key, reason))
	}
	return "config: " + strings.Join(parts, "; ")
}

func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		PriceWeight:      0.3,
		LocationWeight:   0.3,
		DetailsWeight:    0.2,
		InvestmentWeight: 0.2,
		DistanceSteps: []DistanceStep{
			{MaxMiles: 5, Multiplier: 1.0},
			{MaxMiles: 10, Multiplier: 0.7},
			{MaxMiles: 20, Multiplier: 0.4},
		},
		AvgPricePerSqFt:    300,
		PrimeNeighborhood:  0.7,
		NewConstructionAge: 10,
		MaintenanceRiskAge: 30,
		NegotiationMargin:  0.1,
		LongCommuteMiles:   20,
		GreatLocationMiles: 5,
		StrongInvestment:   0.7,
		WeakInvestment:     0.3,
	}
}

func DefaultValidation() ValidationConfig {
	return ValidationConfig{
		PriceWarnMin: 10_000,
		PriceWarnMax: 100_000_000,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfgErr := &Error{Invalid: map[string]string{}}

	scoring := DefaultScoring()
	scoring.AvgPricePerSqFt = getEnvFloat("AVG_PRICE_PER_SQFT", scoring.AvgPricePerSqFt)

	validation := DefaultValidation()
	validation.PriceWarnMin = getEnvFloat("PRICE_WARN_MIN", validation.PriceWarnMin)
	validation.PriceWarnMax = getEnvFloat("PRICE_WARN_MAX", validation.PriceWarnMax)

	cfg := &Config{
		Scoring:    scoring,
		Validation: validation,
		Fetch: FetchConfig{
			RateLimit:  requireDuration(cfgErr, "RATE_LIMIT_MS", time.Millisecond),
			Timeout:    requireDuration(cfgErr, "REQUEST_TIMEOUT", time.Second),
			MaxRetries: getEnvInt("MAX_RETRIES", 3),
			ProxyURL:   os.Getenv("PROXY_URL"),
			UserAgent:  getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		},
		Geocoder: GeocoderConfig{
			BaseURL:   getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: os.Getenv("GEOCODER_USER_AGENT"),
		},
		Defaults: SearchDefaults{
			MinPrice: getEnvFloat("DEFAULT_MIN_PRICE", 300_000),
			MaxPrice: getEnvFloat("DEFAULT_MAX_PRICE", 800_000),
			Location: getEnv("DEFAULT_LOCATION", "San Francisco, CA"),
		},
		Scheduler: SchedulerConfig{
			Cron:      os.Getenv("SCRAPE_CRON"),
			Freshness: getEnvDuration("FRESHNESS_INTERVAL", 6*time.Hour),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Key:             getEnv("S3_KEY", "propscout/properties.json"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		CachePath:     getEnv("CACHE_PATH", filepath.Join("data", "properties.json")),
		DBPath:        getEnv("DB_PATH", "propscout.db"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		CriteriaPath:  getEnv("CRITERIA_PATH", filepath.Join("config", "criteria.yaml")),
		Neighborhoods: getEnv("NEIGHBORHOODS_PATH", filepath.Join("config", "neighborhoods.yaml")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", "propscout.log"),
		Sites:         make(map[string]*SiteConfig),
	}

	validPrices := true
	for key, price := range map[string]float64{
		"DEFAULT_MIN_PRICE": cfg.Defaults.MinPrice,
		"DEFAULT_MAX_PRICE": cfg.Defaults.MaxPrice,
	} {
		if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			cfgErr.Invalid[key] = fmt.Sprintf("%v is not a finite non-negative price", price)
			validPrices = false
		}
	}
	if validPrices && cfg.Defaults.MinPrice > cfg.Defaults.MaxPrice {
		cfgErr.Invalid["DEFAULT_MIN_PRICE"] = fmt.Sprintf("%.0f exceeds DEFAULT_MAX_PRICE %.0f",
			cfg.Defaults.MinPrice, cfg.Defaults.MaxPrice)
	}

	if cfg.Geocoder.UserAgent == "" {
		cfgErr.Missing = append(cfgErr.Missing, "GEOCODER_USER_AGENT")
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			cfgErr.Invalid["SCRAPE_INTERVAL"] = err.Error()
		}
		cfg.Scheduler.Interval = d
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return nil, cfgErr
	}

	if err := cfg.LoadSiteConfigs(filepath.Join("config", "sites")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadSiteConfigs reads every *.yaml file in dir. A missing dir is not an error.
func (c *Config) LoadSiteConfigs(dir string) error {
	if c.Sites == nil {
		c.Sites = make(map[string]*SiteConfig)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if site.ID == "" {
			return fmt.Errorf("%s: site id is required", path)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func requireDuration(cfgErr *Error, key string, unit time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		cfgErr.Missing = append(cfgErr.Missing, key)
		return 0
	}
	n, err := strconv.ParseFloat(val, 64)
	if err != nil || n < 0 {
		cfgErr.Invalid[key] = fmt.Sprintf("%q is not a non-negative number", val)
		return 0
	}
	return time.Duration(n * float64(unit))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

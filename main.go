package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"propscout/config"
	"propscout/geo"
	"propscout/httputil"
	"propscout/logging"
	"propscout/models"
	"propscout/scheduler"
	"propscout/scraper"
	"propscout/services"
	"propscout/storage"
	"propscout/workers"
)

// urlList collects a repeatable -url flag.
type urlList []string

func (u *urlList) String() string { return strings.Join(*u, ",") }

func (u *urlList) Set(v string) error {
	*u = append(*u, v)
	return nil
}

var (
	searchNow    = flag.Bool("search", false, "Run one search and exit")
	force        = flag.Bool("force", false, "Ignore cached results")
	criteriaPath = flag.String("criteria", "", "Saved search YAML (overrides CRITERIA_PATH)")
	listingsPath = flag.String("listings", "", "JSON file of raw listings to analyze")
	report       = flag.Bool("report", false, "Print a summary of the cached results and exit")
	urls         urlList
)

func main() {
	flag.Var(&urls, "url", "Listing or search page to scrape (repeatable)")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			log.Fatalf("Configuration error: %v", cfgErr)
		}
		log.Fatalf("Failed to load config: %v", err)
	}
	if *criteriaPath != "" {
		cfg.CriteriaPath = *criteriaPath
	}

	logFile, err := logging.Setup(cfg.LogFile, 0)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	cache := storage.NewFileCache(cfg.CachePath)

	if *report {
		entry, err := cache.Load()
		if err != nil {
			log.Fatalf("No cached results: %v", err)
		}
		results, err := entry.Properties()
		if err != nil {
			log.Fatalf("Cached results unreadable: %v", err)
		}
		logging.Infof("Results for %s, stored %s", entry.SearchCriteria.Location, entry.Timestamp.Format(time.RFC3339))
		services.PrintReport(os.Stdout, services.Summarize(results))
		return
	}

	logging.Infof("Starting propscout...")
	logging.Infof("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		logging.Infof("  - %s (%s)", site.Name, id)
	}

	clients := httputil.NewClients(&cfg.Fetch)
	geocoder := geo.NewNominatim(cfg.Geocoder, clients.API, cfg.Fetch.RateLimit)

	var neighborhoods services.NeighborhoodScorer
	table, err := services.LoadNeighborhoodTable(cfg.Neighborhoods)
	if err != nil {
		logging.Warnf("No neighborhood table (%v), using random placeholder scores", err)
		neighborhoods = services.NewRandomNeighborhoods(rand.NewSource(time.Now().UnixNano()))
	} else {
		neighborhoods = table
	}
	scorer := services.NewScorer(cfg.Scoring, geocoder, neighborhoods)

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	logging.Infof("SQLite database: %s", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator := scraper.NewOrchestrator(cfg, cache, sqliteStore, scorer)

	browser := scraper.NewBrowserFetcher(cfg.Fetch)
	defer browser.Close()
	orchestrator.SetFetchers(scraper.NewHTTPFetcher(clients.Scraping, cfg.Fetch), browser)

	var pgStore *storage.PostgresStore
	if cfg.PostgresURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			logging.Warnf("Postgres export disabled: %v", err)
			pgStore = nil
		} else {
			defer pgStore.Close()
			logging.Infof("Connected to Postgres: %s", maskConnectionString(cfg.PostgresURL))
		}
	}
	var publisher *storage.S3Publisher
	if cfg.S3.Enabled() {
		publisher, err = storage.NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			logging.Warnf("S3 publishing disabled: %v", err)
			publisher = nil
		}
	}
	orchestrator.SetExports(pgStore, publisher)

	if *searchNow {
		req, err := buildRequest(cfg)
		if err != nil {
			log.Fatalf("Invalid search: %v", err)
		}
		req.ForceRefresh = *force

		res, err := orchestrator.Run(ctx, req)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		if res.FromCache {
			logging.Infof("Returned cached results from %s", res.Entry.Timestamp.Format(time.RFC3339))
		}
		results, err := res.Entry.Properties()
		if err != nil {
			log.Fatalf("Results unreadable: %v", err)
		}
		services.PrintReport(os.Stdout, services.Summarize(results))
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)

	if cfg.Scheduler.Freshness > 0 {
		freshness := workers.NewFreshnessWorker(cache, clients.Scraping, cfg.Fetch.RateLimit, cfg.Fetch.UserAgent)
		freshness.SetLogger(func(level models.LogLevel, source, message string) {
			sqliteStore.Log("", level, message, source)
		})
		go freshness.Run(ctx, cfg.Scheduler.Freshness)
		sched.SetWorkers(freshness)
		logging.Infof("Freshness worker started (every %s)", cfg.Scheduler.Freshness)
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	logging.Infof("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Infof("Shutting down...")
	cancel()
	sched.Stop()
	logging.Infof("Goodbye!")
}

// buildRequest assembles a one-shot search from the saved search file and
// the command line. A missing saved search file means default criteria.
func buildRequest(cfg *config.Config) (models.SearchRequest, error) {
	search, err := config.LoadSavedSearch(cfg.CriteriaPath, cfg.Defaults)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.SearchRequest{}, err
	}

	req := models.SearchRequest{Criteria: search.Criteria, URLs: search.URLs}
	if len(urls) > 0 {
		req.URLs = urls
	}

	if *listingsPath != "" {
		data, err := os.ReadFile(*listingsPath)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req.Listings); err != nil {
			return req, err
		}
	}

	if len(req.URLs) == 0 && len(req.Listings) == 0 {
		logging.Warnf("No pages or listings given, the search will produce an empty result set")
	}
	return req, nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.IndexByte(connStr[start:], '@')
	if at < 0 {
		return connStr
	}
	at += start

	colon := strings.IndexByte(connStr[start:at], ':')
	if colon < 0 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}

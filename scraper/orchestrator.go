package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"propscout/config"
	"propscout/identity"
	"propscout/logging"
	"propscout/models"
	"propscout/services"
	"propscout/storage"
)

var taskDescriptions = map[string]string{
	models.TaskScrape:   "Collect property listings for the search criteria",
	models.TaskValidate: "Check listings for required fields and clean their values",
	models.TaskAnalyze:  "Score each listing against the search criteria",
}

// Orchestrator runs the search pipeline: cache lookup, scrape, validate,
// score, and persist.
type Orchestrator struct {
	cfg       *config.Config
	cache     *storage.FileCache
	store     *storage.SQLiteStore
	validator *services.Validator
	scorer    *services.Scorer
	registry  *Registry
	fetcher   Fetcher
	browser   Fetcher

	// Optional exports
	pgStore   *storage.PostgresStore
	publisher *storage.S3Publisher

	// runMu serializes runs; the scheduler and the command poller both start them.
	runMu sync.Mutex

	mu     sync.Mutex
	paused bool
}

func NewOrchestrator(cfg *config.Config, cache *storage.FileCache, store *storage.SQLiteStore, scorer *services.Scorer) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		cache:     cache,
		store:     store,
		validator: services.NewValidator(cfg.Validation),
		scorer:    scorer,
		registry:  NewRegistry(cfg.Sites),
	}
}

// SetFetchers sets the page fetchers. browser may be nil, in which case
// browser-rendered sites are fetched over plain HTTP.
func (o *Orchestrator) SetFetchers(fetcher, browser Fetcher) {
	o.fetcher = fetcher
	o.browser = browser
}

// SetExports injects the optional Postgres mirror and S3 publisher.
func (o *Orchestrator) SetExports(pgStore *storage.PostgresStore, publisher *storage.S3Publisher) {
	o.pgStore = pgStore
	o.publisher = publisher
}

// Run executes one search. A cached entry for the same criteria is returned
// as is unless the request forces a refresh. Only a failure to store the
// new cache entry fails the run; per-source and per-listing problems are
// logged and counted. Runs never overlap; a second caller waits for the
// first to finish.
func (o *Orchestrator) Run(ctx context.Context, req models.SearchRequest) (*models.RunResult, error) {
	criteria := req.Criteria
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}

	o.runMu.Lock()
	defer o.runMu.Unlock()

	hash := identity.CriteriaHash(criteria)

	if !req.ForceRefresh {
		if entry, ok := o.cache.Lookup(criteria); ok {
			logging.Infof("Cache hit for criteria %s (stored %s)", hash, entry.Timestamp.Format(time.RFC3339))
			return &models.RunResult{
				RunID:     o.recordCachedRun(criteria, hash),
				Entry:     entry,
				FromCache: true,
			}, nil
		}
	}

	run := &models.SearchRun{
		ID:           uuid.NewString(),
		CriteriaHash: hash,
		Criteria:     criteria,
		StartedAt:    time.Now(),
		Status:       models.RunStatusRunning,
		SourcesTotal: len(req.URLs),
	}
	if o.store != nil {
		if err := o.store.CreateRun(run); err != nil {
			logging.Warnf("Failed to record run %s: %v", run.ID, err)
		}
	}
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting search for %s, $%.0f-$%.0f",
		criteria.Location, criteria.PriceRange.Min, criteria.PriceRange.Max), "")

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if o.store != nil {
			if err := o.store.UpdateRun(run); err != nil {
				logging.Warnf("Failed to update run %s: %v", run.ID, err)
			}
		}
	}()

	raws := append([]models.RawListing(nil), req.Listings...)
	for _, pageURL := range req.URLs {
		listings, err := o.scrape(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				run.Status = models.RunStatusFailed
				return nil, ctx.Err()
			}
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scrape failed: %v", err), pageURL)
			run.ErrorsCount++
			continue
		}
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Found %d listings", len(listings)), pageURL)
		raws = append(raws, listings...)
	}
	run.ListingsFound = len(raws)

	validations := make([]models.ValidationResult, 0, len(raws))
	results := make([]models.PropertyResult, 0, len(raws))
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			run.Status = models.RunStatusFailed
			return nil, err
		}

		validation := o.validator.Validate(raw)
		validations = append(validations, validation)
		if validation.IsValid {
			run.ListingsValid++
		} else {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Invalid listing %q: missing %v, %s",
				validation.Cleaned.Title, validation.MissingFields, strings.Join(validation.Warnings, "; ")), raw.URL)
		}

		result := o.analyze(ctx, validation, criteria)
		if result.Error != "" {
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Analysis of %q: %s", result.Listing.Title, result.Error), raw.URL)
		}
		if result.Analysis.MatchScore > run.TopScore {
			run.TopScore = result.Analysis.MatchScore
		}
		results = append(results, result)
	}

	entry, err := buildEntry(raws, validations, results)
	if err != nil {
		run.Status = models.RunStatusFailed
		return nil, err
	}
	if err := o.cache.Store(criteria, entry); err != nil {
		run.Status = models.RunStatusFailed
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Failed to store results: %v", err), "")
		return nil, fmt.Errorf("store results: %w", err)
	}

	run.Status = models.RunStatusCompleted
	o.export(ctx, run, entry, results)

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Completed: %d listings, %d valid, %d errors, top score %.2f",
		run.ListingsFound, run.ListingsValid, run.ErrorsCount, run.TopScore), "")

	return &models.RunResult{
		RunID:  run.ID,
		Entry:  entry,
		Errors: run.ErrorsCount,
	}, nil
}

func (o *Orchestrator) scrape(ctx context.Context, pageURL string) ([]models.RawListing, error) {
	fetcher := o.fetcher
	if o.browser != nil && o.registry.NeedsBrowser(pageURL) {
		fetcher = o.browser
	}
	if fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}

	html, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	extractor := o.registry.For(pageURL)
	listings, err := extractor.Extract(doc, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s extractor: %w", extractor.Name(), err)
	}
	return listings, nil
}

func (o *Orchestrator) analyze(ctx context.Context, validation models.ValidationResult, criteria models.Criteria) (result models.PropertyResult) {
	result = models.PropertyResult{
		Listing:    validation.Cleaned,
		Validation: validation,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("analysis panicked: %v", r)
		}
	}()

	result.Analysis = o.scorer.Score(ctx, validation.Cleaned, criteria)
	if la := result.Analysis.LocationAnalysis; la != nil && la.Error != "" {
		result.Error = la.Error
	}
	return result
}

func buildEntry(raws []models.RawListing, validations []models.ValidationResult, results []models.PropertyResult) (*models.CacheEntry, error) {
	entry := &models.CacheEntry{}
	for _, stage := range []struct {
		task   string
		output any
	}{
		{models.TaskScrape, raws},
		{models.TaskValidate, validations},
		{models.TaskAnalyze, results},
	} {
		raw, err := json.Marshal(stage.output)
		if err != nil {
			return nil, fmt.Errorf("encode %s output: %w", stage.task, err)
		}
		entry.Result = append(entry.Result, models.TaskOutput{
			Task:        stage.task,
			Description: taskDescriptions[stage.task],
			Raw:         raw,
		})
	}
	return entry, nil
}

// export mirrors a finished run to the secondary stores. Failures are
// logged against the run and never fail it.
func (o *Orchestrator) export(ctx context.Context, run *models.SearchRun, entry *models.CacheEntry, results []models.PropertyResult) {
	if o.store != nil {
		if err := o.store.SaveResults(run.ID, results); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("SQLite save failed: %v", err), "sqlite")
		}
	}

	if o.pgStore != nil {
		if err := o.pgStore.SaveRun(ctx, run); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Postgres run export failed: %v", err), "postgres")
		} else if err := o.pgStore.SaveResults(ctx, run.ID, results); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Postgres results export failed: %v", err), "postgres")
		}
	}

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, entry); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("S3 publish failed: %v", err), "s3")
		} else {
			o.log(run.ID, models.LogLevelInfo, "Published results to "+o.publisher.PublicURL(), "s3")
		}
	}
}

func (o *Orchestrator) recordCachedRun(criteria models.Criteria, hash string) string {
	now := time.Now()
	run := &models.SearchRun{
		ID:           uuid.NewString(),
		CriteriaHash: hash,
		Criteria:     criteria,
		StartedAt:    now,
		FinishedAt:   &now,
		Status:       models.RunStatusCached,
	}
	if o.store == nil {
		return run.ID
	}
	if err := o.store.CreateRun(run); err != nil {
		logging.Warnf("Failed to record cached run: %v", err)
	} else if err := o.store.UpdateRun(run); err != nil {
		logging.Warnf("Failed to finish cached run: %v", err)
	}
	return run.ID
}

// DefaultCriteria builds search criteria from the configured defaults.
func (o *Orchestrator) DefaultCriteria() models.Criteria {
	return models.Criteria{
		PriceRange: models.PriceRange{Min: o.cfg.Defaults.MinPrice, Max: o.cfg.Defaults.MaxPrice},
		Location:   o.cfg.Defaults.Location,
	}
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdSearch:
		var params *models.CommandParams
		if o.store != nil {
			p, err := o.store.ParseCommandParams(cmd)
			if err != nil {
				return fmt.Errorf("command %d params: %w", cmd.ID, err)
			}
			params = p
		} else {
			params = &models.CommandParams{}
			if len(cmd.Params) > 0 {
				if err := json.Unmarshal(cmd.Params, params); err != nil {
					return fmt.Errorf("command %d params: %w", cmd.ID, err)
				}
			}
		}

		criteria := o.DefaultCriteria()
		if params.Criteria != nil {
			criteria = *params.Criteria
		}
		if err := criteria.Validate(); err != nil {
			return fmt.Errorf("command %d criteria: %w", cmd.ID, err)
		}
		_, err := o.Run(ctx, models.SearchRequest{
			Criteria:     criteria,
			URLs:         params.URLs,
			ForceRefresh: params.Force,
		})
		return err
	case models.CmdPause:
		o.setPaused(true)
		logging.Infof("Searches paused")
	case models.CmdResume:
		o.setPaused(false)
		logging.Infof("Searches resumed")
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *Orchestrator) setPaused(paused bool) {
	o.mu.Lock()
	o.paused = paused
	o.mu.Unlock()
}

func (o *Orchestrator) log(runID string, level models.LogLevel, message, source string) {
	line := message
	if source != "" {
		line = source + ": " + message
	}
	switch level {
	case models.LogLevelError:
		logging.Errorf("%s", line)
	case models.LogLevelWarn:
		logging.Warnf("%s", line)
	default:
		logging.Infof("%s", line)
	}

	if o.store != nil {
		if err := o.store.Log(runID, level, message, source); err != nil {
			logging.Debugf("Failed to write run log: %v", err)
		}
	}
}

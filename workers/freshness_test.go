package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"propscout/models"
	"propscout/storage"
)

func seedCache(t *testing.T, urls ...string) *storage.FileCache {
	t.Helper()
	var results []models.PropertyResult
	for _, u := range urls {
		results = append(results, models.PropertyResult{Listing: models.Listing{Title: "listing", URL: u}})
	}
	raw, err := json.Marshal(results)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	cache := storage.NewFileCache(filepath.Join(t.TempDir(), "properties.json"))
	entry := &models.CacheEntry{Result: []models.TaskOutput{{Task: models.TaskAnalyze, Raw: raw}}}
	criteria := models.Criteria{Location: "Oakland, CA", PriceRange: models.PriceRange{Min: 1, Max: 2}}
	if err := cache.Store(criteria, entry); err != nil {
		t.Fatalf("store: %v", err)
	}
	return cache
}

func TestCheckClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusGone)
		case "/missing":
			http.NotFound(w, r)
		case "/to-search":
			http.Redirect(w, r, "/search?city=oakland", http.StatusFound)
		case "/renamed":
			http.Redirect(w, r, "/homes/42-new-slug", http.StatusMovedPermanently)
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	w := NewFreshnessWorker(storage.NewFileCache(filepath.Join(t.TempDir(), "x.json")), srv.Client(), 0, "propscout-test")

	tests := []struct {
		path     string
		wantLive bool
	}{
		{"/homes/42", true},
		{"/gone", false},
		{"/missing", false},
		{"/to-search", false},
		{"/renamed", true},
		{"/blocked", true},
	}
	for _, tt := range tests {
		res := w.Check(context.Background(), srv.URL+tt.path)
		if res.Error != nil {
			t.Fatalf("%s: unexpected error %v", tt.path, res.Error)
		}
		if res.IsLive != tt.wantLive {
			t.Errorf("%s: IsLive = %v; want %v (status %d)", tt.path, res.IsLive, tt.wantLive, res.StatusCode)
		}
	}
}

func TestCheckCachedReportsDelisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sold" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cache := seedCache(t, srv.URL+"/active", srv.URL+"/sold", "")
	w := NewFreshnessWorker(cache, srv.Client(), 0, "")

	var logged []string
	w.SetLogger(func(level models.LogLevel, source, message string) {
		logged = append(logged, source+": "+message)
	})

	report := w.CheckCached(context.Background())
	if report.Checked != 2 {
		t.Fatalf("expected 2 checked (empty url skipped), got %d", report.Checked)
	}
	if len(report.Delisted) != 1 || report.Delisted[0] != srv.URL+"/sold" {
		t.Fatalf("unexpected delisted %v", report.Delisted)
	}
	if len(logged) != 1 || logged[0] != "freshness: Checked 2 cached listings, 1 delisted" {
		t.Fatalf("unexpected log lines %q", logged)
	}
}

func TestCheckCachedWithoutCache(t *testing.T) {
	w := NewFreshnessWorker(storage.NewFileCache(filepath.Join(t.TempDir(), "none.json")), http.DefaultClient, 0, "")
	if report := w.CheckCached(context.Background()); report.Checked != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestTriggerDoesNotBlock(t *testing.T) {
	w := NewFreshnessWorker(storage.NewFileCache("unused.json"), http.DefaultClient, 0, "")
	w.Trigger()
	w.Trigger()
	if len(w.triggerCh) != 1 {
		t.Fatalf("expected one pending trigger, got %d", len(w.triggerCh))
	}
}

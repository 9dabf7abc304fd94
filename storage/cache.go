package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"propscout/identity"
	"propscout/logging"
	"propscout/models"
)

// FileCache is the single-slot result cache. The slot holds the most
// recent search; a new Store replaces it regardless of criteria.
type FileCache struct {
	path string
	now  func() time.Time
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path, now: time.Now}
}

func (c *FileCache) Path() string {
	return c.path
}

// Lookup returns the cached entry when its hash matches criteria. Any
// problem reading the slot is a miss.
func (c *FileCache) Lookup(criteria models.Criteria) (*models.CacheEntry, bool) {
	entry, err := c.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warnf("Cache %s unreadable, treating as miss: %v", c.path, err)
		}
		return nil, false
	}

	if entry.CriteriaHash != identity.CriteriaHash(criteria) {
		logging.Debugf("Cache miss: stored hash %s", entry.CriteriaHash)
		return nil, false
	}
	return entry, true
}

// Load reads the slot without comparing criteria.
func (c *FileCache) Load() (*models.CacheEntry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	if entry.CriteriaHash == "" {
		return nil, fmt.Errorf("decode %s: no criteria hash", c.path)
	}
	return &entry, nil
}

// Store stamps entry with criteria and replaces the slot. The write goes
// to a temp file in the same directory that is renamed over the slot, so
// readers see either the old or the new document.
func (c *FileCache) Store(criteria models.Criteria, entry *models.CacheEntry) error {
	entry.SearchCriteria = identity.NormalizeCriteria(criteria)
	entry.CriteriaHash = identity.CriteriaHash(criteria)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now().UTC()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".properties-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"propscout/models"
)

// SavedSearch is the search the scheduler refreshes: criteria plus the
// pages to scrape for it.
type SavedSearch struct {
	Criteria models.Criteria `yaml:",inline"`
	URLs     []string        `yaml:"urls"`
}

// LoadSavedSearch reads a saved search from a YAML file. Fields the file
// leaves out fall back to defaults. Criteria that fail Validate are an error.
func LoadSavedSearch(path string, defaults SearchDefaults) (SavedSearch, error) {
	search := SavedSearch{
		Criteria: models.Criteria{
			PriceRange: models.PriceRange{Min: defaults.MinPrice, Max: defaults.MaxPrice},
			Location:   defaults.Location,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return search, err
	}
	if err := yaml.Unmarshal(data, &search); err != nil {
		return search, fmt.Errorf("%s: %w", path, err)
	}

	if err := search.Criteria.Validate(); err != nil {
		return search, fmt.Errorf("%s: %w", path, err)
	}
	return search, nil
}

// LoadCriteria is LoadSavedSearch without the page list.
func LoadCriteria(path string, defaults SearchDefaults) (models.Criteria, error) {
	search, err := LoadSavedSearch(path, defaults)
	return search.Criteria, err
}

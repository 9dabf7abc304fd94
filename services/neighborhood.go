package services

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"propscout/identity"
	"propscout/models"
)

// NeighborhoodScorer rates a listing's surroundings in [0,1].
// coords is nil when the listing could not be geocoded.
type NeighborhoodScorer interface {
	NeighborhoodScore(ctx context.Context, location string, coords *models.Coordinates) (float64, error)
}

// NeighborhoodTable scores by the longest matching area name found in the
// listing's normalized location.
type NeighborhoodTable struct {
	Default float64            `yaml:"default"`
	Areas   []NeighborhoodArea `yaml:"areas"`
}

type NeighborhoodArea struct {
	Match string  `yaml:"match"`
	Score float64 `yaml:"score"`
}

func LoadNeighborhoodTable(path string) (*NeighborhoodTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var table NeighborhoodTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, area := range table.Areas {
		if area.Score < 0 || area.Score > 1 {
			return nil, fmt.Errorf("%s: score for %q must be within [0,1]", path, area.Match)
		}
	}
	return &table, nil
}

func (t *NeighborhoodTable) NeighborhoodScore(_ context.Context, location string, _ *models.Coordinates) (float64, error) {
	normalized := " " + identity.NormalizeAddress(location) + " "

	best, bestLen := t.Default, 0
	for _, area := range t.Areas {
		match := identity.NormalizeAddress(area.Match)
		if match == "" || len(match) <= bestLen {
			continue
		}
		if strings.Contains(normalized, " "+match+" ") {
			best, bestLen = area.Score, len(match)
		}
	}
	return best, nil
}

// RandomNeighborhoods is the demo placeholder: a uniform draw from src.
// Not a real signal; use a NeighborhoodTable for anything but demos.
type RandomNeighborhoods struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomNeighborhoods(src rand.Source) *RandomNeighborhoods {
	return &RandomNeighborhoods{rng: rand.New(src)}
}

func (r *RandomNeighborhoods) NeighborhoodScore(context.Context, string, *models.Coordinates) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64(), nil
}

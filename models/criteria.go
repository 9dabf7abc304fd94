package models

import (
	"fmt"
	"math"
)

// Criteria is one search request's constraints. Treat as immutable once a
// search starts.
type Criteria struct {
	PriceRange   PriceRange  `json:"price_range" yaml:"price_range"`
	Location     string      `json:"location" yaml:"location"`
	PropertyType string      `json:"property_type" yaml:"property_type"`
	Preferences  Preferences `json:"preferences" yaml:"preferences"`
}

// Validate rejects criteria that cannot be scored or stored.
func (c Criteria) Validate() error {
	if err := c.PriceRange.Validate(); err != nil {
		return err
	}
	sqft := c.Preferences.TargetSqFt
	if math.IsNaN(sqft) || math.IsInf(sqft, 0) || sqft < 0 {
		return fmt.Errorf("preferences.target_sqft must be a finite non-negative number, got %v", sqft)
	}
	return nil
}

type PriceRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// Validate requires finite, non-negative bounds with Min <= Max.
func (r PriceRange) Validate() error {
	for _, b := range []struct {
		name  string
		value float64
	}{{"min", r.Min}, {"max", r.Max}} {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return fmt.Errorf("price_range.%s must be a finite number, got %v", b.name, b.value)
		}
		if b.value < 0 {
			return fmt.Errorf("price_range.%s must not be negative, got %.0f", b.name, b.value)
		}
	}
	if r.Min > r.Max {
		return fmt.Errorf("price_range.min %.0f exceeds max %.0f", r.Min, r.Max)
	}
	return nil
}

type Preferences struct {
	TargetSqFt        float64  `json:"target_sqft" yaml:"target_sqft"`
	RequiredAmenities []string `json:"required_amenities" yaml:"required_amenities"`
}

// SearchRequest is one invocation of the search pipeline.
type SearchRequest struct {
	Criteria     Criteria
	URLs         []string
	Listings     []RawListing
	ForceRefresh bool
}

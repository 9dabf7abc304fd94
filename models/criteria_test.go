package models

import (
	"math"
	"testing"
)

func TestCriteriaValidate(t *testing.T) {
	valid := Criteria{
		PriceRange:  PriceRange{Min: 300_000, Max: 800_000},
		Location:    "Oakland, CA",
		Preferences: Preferences{TargetSqFt: 1500},
	}

	tests := []struct {
		name    string
		mod     func(*Criteria)
		wantErr bool
	}{
		{"valid", func(*Criteria) {}, false},
		{"open lower bound", func(c *Criteria) { c.PriceRange.Min = 0 }, false},
		{"equal bounds", func(c *Criteria) { c.PriceRange.Min = 800_000 }, false},
		{"infinite max", func(c *Criteria) { c.PriceRange.Max = math.Inf(1) }, true},
		{"nan min", func(c *Criteria) { c.PriceRange.Min = math.NaN() }, true},
		{"negative min", func(c *Criteria) { c.PriceRange.Min = -1 }, true},
		{"inverted", func(c *Criteria) { c.PriceRange.Min = 900_000 }, true},
		{"infinite sqft", func(c *Criteria) { c.Preferences.TargetSqFt = math.Inf(1) }, true},
		{"nan sqft", func(c *Criteria) { c.Preferences.TargetSqFt = math.NaN() }, true},
	}

	for _, tt := range tests {
		c := valid
		tt.mod(&c)
		err := c.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v; wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

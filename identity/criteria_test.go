package identity

import (
	"math"
	"testing"

	"propscout/models"
)

func baseCriteria() models.Criteria {
	return models.Criteria{
		PriceRange:   models.PriceRange{Min: 300000, Max: 800000},
		Location:     "San Francisco, CA",
		PropertyType: "Single Family",
		Preferences: models.Preferences{
			TargetSqFt:        1800,
			RequiredAmenities: []string{"garage", "pool", "fireplace"},
		},
	}
}

func TestCriteriaHashIgnoresAmenityOrder(t *testing.T) {
	a := baseCriteria()
	b := baseCriteria()
	b.Preferences.RequiredAmenities = []string{"fireplace", "garage", "pool"}
	c := baseCriteria()
	c.Preferences.RequiredAmenities = []string{"pool", "fireplace", "garage", "pool"}

	if CriteriaHash(a) != CriteriaHash(b) {
		t.Fatalf("hash changed under permutation")
	}
	if CriteriaHash(a) != CriteriaHash(c) {
		t.Fatalf("hash changed with a duplicate amenity")
	}
}

func TestCriteriaHashDiffersOnPriceBounds(t *testing.T) {
	base := CriteriaHash(baseCriteria())

	tests := []struct {
		name string
		mod  func(*models.Criteria)
	}{
		{"min", func(c *models.Criteria) { c.PriceRange.Min = 300001 }},
		{"max", func(c *models.Criteria) { c.PriceRange.Max = 750000 }},
		{"swapped", func(c *models.Criteria) { c.PriceRange.Min, c.PriceRange.Max = 800000, 300000 }},
		{"location", func(c *models.Criteria) { c.Location = "Oakland, CA" }},
		{"amenity", func(c *models.Criteria) { c.Preferences.RequiredAmenities = []string{"garage"} }},
	}

	for _, tt := range tests {
		c := baseCriteria()
		tt.mod(&c)
		if got := CriteriaHash(c); got == base {
			t.Errorf("%s: expected different hash", tt.name)
		}
	}
}

func TestCriteriaHashFixedWidth(t *testing.T) {
	h := CriteriaHash(baseCriteria())
	if len(h) != 32 {
		t.Fatalf("expected 32 hex chars (128 bits), got %d: %s", len(h), h)
	}
	if h != CriteriaHash(baseCriteria()) {
		t.Fatalf("hash is not deterministic")
	}
}

func TestCriteriaHashEmptyAmenities(t *testing.T) {
	a := baseCriteria()
	a.Preferences.RequiredAmenities = nil
	b := baseCriteria()
	b.Preferences.RequiredAmenities = []string{}

	if CriteriaHash(a) != CriteriaHash(b) {
		t.Fatalf("nil and empty amenities should hash the same")
	}
}

func TestNormalizeCriteriaDoesNotMutateInput(t *testing.T) {
	c := baseCriteria()
	NormalizeCriteria(c)
	if c.Preferences.RequiredAmenities[0] != "garage" {
		t.Fatalf("input slice was reordered: %v", c.Preferences.RequiredAmenities)
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{
		"b": []any{"z", "a"},
		"a": 1e6,
		"c": map[string]any{"y": true, "x": nil},
	})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	want := `{"a":1000000,"b":["z","a"],"c":{"x":null,"y":true}}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCriteriaHashNonFiniteBounds(t *testing.T) {
	tests := []struct {
		name string
		max  float64
	}{
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
		{"nan", math.NaN()},
	}

	base := CriteriaHash(baseCriteria())
	for _, tt := range tests {
		c := baseCriteria()
		c.PriceRange.Max = tt.max
		h := CriteriaHash(c)
		if len(h) != 32 {
			t.Errorf("%s: expected 32 hex chars, got %q", tt.name, h)
		}
		if h == base {
			t.Errorf("%s: expected a different hash from the finite range", tt.name)
		}
		if h != CriteriaHash(c) {
			t.Errorf("%s: hash is not deterministic", tt.name)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123 Main Street, San Francisco", "123 main st san francisco"},
		{"  45 West   Avenue  ", "45 w ave"},
		{"9 Westminster Road", "9 westminster rd"},
	}

	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

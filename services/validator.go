package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"propscout/config"
	"propscout/models"
)

var requiredFields = []string{"title", "price", "location", "details"}

const (
	minYearBuilt = 1000
	maxYearBuilt = 9999
)

// Validator checks scraped listings for required fields and cleans them
// into canonical types.
type Validator struct {
	cfg config.ValidationConfig
}

// NewValidator creates a Validator with the given sanity bounds.
func NewValidator(cfg config.ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate never short-circuits: every field is checked and cleaned even
// when an earlier one failed.
func (v *Validator) Validate(raw models.RawListing) models.ValidationResult {
	result := models.ValidationResult{IsValid: true}

	present := map[string]bool{
		"title":    raw.Title != nil,
		"price":    raw.Price != nil,
		"location": raw.Location != nil,
		"details":  raw.Details != nil,
	}
	for _, field := range requiredFields {
		if !present[field] {
			result.IsValid = false
			result.MissingFields = append(result.MissingFields, field)
		}
	}

	if present["title"] {
		v.checkText(&result, "title", raw.Title)
	}
	if present["location"] {
		v.checkText(&result, "location", raw.Location)
	}
	if present["price"] {
		v.checkPrice(&result, raw.Price)
	}
	if present["details"] {
		v.checkDetails(&result, raw.Details)
	}

	result.Cleaned = v.Clean(raw)
	return result
}

// Clean coerces every field of raw to its canonical type.
func (v *Validator) Clean(raw models.RawListing) models.Listing {
	listing := models.Listing{
		URL:    raw.URL,
		Source: raw.Source,
	}

	if s, ok := raw.Title.(string); ok {
		listing.Title = s
	}
	if s, ok := raw.Location.(string); ok {
		listing.Location = strings.TrimSpace(s)
	}

	listing.Price = cleanPrice(priceText(raw.Price))
	if f, err := strconv.ParseFloat(listing.Price, 64); err == nil {
		listing.PriceValue = f
	}

	if details, ok := raw.Details.(map[string]any); ok {
		listing.Details = models.Details{
			Bedrooms:  toFloat(details["bedrooms"]),
			Bathrooms: toFloat(details["bathrooms"]),
			SqFt:      toFloat(details["sqft"]),
			YearBuilt: yearBuilt(details["year_built"]),
		}
	}

	for _, f := range raw.Features {
		f = strings.TrimSpace(f)
		if f != "" {
			listing.Features = append(listing.Features, f)
		}
	}

	return listing
}

func (v *Validator) checkText(result *models.ValidationResult, field string, value any) {
	s, ok := value.(string)
	if !ok {
		result.IsValid = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s is not text", field))
		return
	}
	if s == "" {
		result.IsValid = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s is empty", field))
		return
	}
	if strings.TrimSpace(s) == "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s is blank after trimming", field))
	}
}

func (v *Validator) checkPrice(result *models.ValidationResult, value any) {
	cleaned := cleanPrice(priceText(value))
	price, err := strconv.ParseFloat(cleaned, 64)
	if cleaned == "" || err != nil {
		result.IsValid = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("price %v is not a number", value))
		return
	}

	switch {
	case price <= 0:
		result.Warnings = append(result.Warnings, "price is zero")
	case price < v.cfg.PriceWarnMin:
		result.Warnings = append(result.Warnings, fmt.Sprintf("price %.0f is unusually low", price))
	}
	if price > v.cfg.PriceWarnMax {
		result.Warnings = append(result.Warnings, fmt.Sprintf("price %.0f is unusually high", price))
	}
}

func (v *Validator) checkDetails(result *models.ValidationResult, value any) {
	details, ok := value.(map[string]any)
	if !ok {
		result.IsValid = false
		result.Warnings = append(result.Warnings, "details is not a mapping")
		return
	}

	for _, key := range []string{"bedrooms", "bathrooms", "sqft"} {
		val, present := details[key]
		if !present || val == nil {
			continue
		}
		if _, ok := parseNumber(val); !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s %v is not numeric", key, val))
		}
	}
}

// priceText renders a scraped price of any shape as text.
func priceText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// cleanPrice keeps only digits and the decimal point.
func cleanPrice(s string) string {
	var b strings.Builder
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func parseNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// yearBuilt keeps four-digit years only; anything else cleans to 0.
func yearBuilt(value any) int {
	f := toFloat(value)
	if f < minYearBuilt || f >= maxYearBuilt+1 {
		return 0
	}
	return int(f)
}

func toFloat(value any) float64 {
	f, _ := parseNumber(value)
	return f
}

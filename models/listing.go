package models

import "strconv"

// RawListing is a scraped record as handed over by an extractor or agent.
// Fields are left untyped because scraped sources disagree on shapes; a nil
// field means the source did not provide it.
type RawListing struct {
	Title    any      `json:"title,omitempty"`
	Price    any      `json:"price,omitempty"`
	Location any      `json:"location,omitempty"`
	Details  any      `json:"details,omitempty"`
	Features []string `json:"features,omitempty"`
	URL      string   `json:"url,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Listing is a RawListing after cleaning.
type Listing struct {
	Title      string   `json:"title"`
	Price      string   `json:"price"`
	PriceValue float64  `json:"price_value"`
	Location   string   `json:"location"`
	Details    Details  `json:"details"`
	Features   []string `json:"features"`
	URL        string   `json:"url,omitempty"`
	Source     string   `json:"source,omitempty"`
}

type Details struct {
	Bedrooms  float64 `json:"bedrooms"`
	Bathrooms float64 `json:"bathrooms"`
	SqFt      float64 `json:"sqft"`
	YearBuilt int     `json:"year_built,omitempty"`
}

// HasPrice reports whether the cleaned price string holds a usable number.
func (l Listing) HasPrice() bool {
	if l.Price == "" {
		return false
	}
	_, err := strconv.ParseFloat(l.Price, 64)
	return err == nil
}

// Raw converts a cleaned listing back into the scraped shape.
func (l Listing) Raw() RawListing {
	details := map[string]any{
		"bedrooms":  l.Details.Bedrooms,
		"bathrooms": l.Details.Bathrooms,
		"sqft":      l.Details.SqFt,
	}
	if l.Details.YearBuilt > 0 {
		details["year_built"] = float64(l.Details.YearBuilt)
	}

	var features []string
	if len(l.Features) > 0 {
		features = append([]string(nil), l.Features...)
	}

	return RawListing{
		Title:    l.Title,
		Price:    l.Price,
		Location: l.Location,
		Details:  details,
		Features: features,
		URL:      l.URL,
		Source:   l.Source,
	}
}

type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	MissingFields []string `json:"missing_fields"`
	Warnings      []string `json:"warnings"`
	Cleaned       Listing  `json:"cleaned_data"`
}

package scraper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propscout/logging"
	"propscout/models"
)

// GenericExtractor handles single-listing pages of unknown sites. It reads
// common property-page classes first, then OpenGraph tags, then schema.org
// JSON-LD.
type GenericExtractor struct{}

func (GenericExtractor) Name() string {
	return "generic"
}

func (GenericExtractor) Extract(doc *goquery.Document, pageURL string) ([]models.RawListing, error) {
	listing := models.RawListing{URL: pageURL, Source: "generic"}
	ld := findListingLD(doc)

	title := firstText(doc, "h1.property-title", ".property-title", "[itemprop='name']")
	if title == "" {
		title = metaContent(doc, "og:title")
	}
	if title == "" {
		title = ldString(ld, "name")
	}
	if title != "" {
		listing.Title = title
	}

	price := firstText(doc, ".property-price", "[itemprop='price']")
	if price == "" {
		price = metaContent(doc, "product:price:amount", "og:price:amount")
	}
	if price == "" {
		price = ldPrice(ld)
	}
	if price != "" {
		listing.Price = price
	}

	location := firstText(doc, ".property-location", ".property-address", "[itemprop='address']")
	if location == "" {
		location = ldAddress(ld)
	}
	if location != "" {
		listing.Location = location
	}

	details := map[string]any{}
	for key, selectors := range map[string][]string{
		"bedrooms":   {".property-bedrooms", ".beds"},
		"bathrooms":  {".property-bathrooms", ".baths"},
		"sqft":       {".property-sqft", ".sqft"},
		"year_built": {".property-year-built", ".year-built"},
	} {
		if n := numericText(firstText(doc, selectors...)); n != "" {
			details[key] = n
		}
	}
	for key, ldKey := range map[string]string{
		"bedrooms":   "numberOfBedrooms",
		"bathrooms":  "numberOfBathroomsTotal",
		"year_built": "yearBuilt",
	} {
		if _, ok := details[key]; !ok {
			if v := ldString(ld, ldKey); v != "" {
				details[key] = v
			}
		}
	}
	if _, ok := details["sqft"]; !ok {
		if v := ldString(ld, "floorSize"); v != "" {
			details["sqft"] = v
		}
	}
	if len(details) > 0 {
		listing.Details = details
	}

	doc.Find(".property-features li, .amenities li").Each(func(_ int, s *goquery.Selection) {
		if f := cleanText(s.Text()); f != "" {
			listing.Features = append(listing.Features, f)
		}
	})
	if len(listing.Features) == 0 {
		listing.Features = ldAmenities(ld)
	}

	if listing.Title == nil && listing.Price == nil {
		return nil, nil
	}
	return []models.RawListing{listing}, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, properties ...string) string {
	for _, prop := range properties {
		sel := fmt.Sprintf("meta[property='%s'], meta[name='%s']", prop, prop)
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var listingTypes = map[string]bool{
	"residence":             true,
	"singlefamilyresidence": true,
	"house":                 true,
	"apartment":             true,
	"accommodation":         true,
	"product":               true,
	"realestatelisting":     true,
}

// findListingLD returns the first JSON-LD object describing a property,
// searching top-level arrays and @graph.
func findListingLD(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			logging.Debugf("Skipping malformed JSON-LD block: %v", err)
			return true
		}
		found = searchLD(payload)
		return found == nil
	})
	return found
}

func searchLD(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if m := searchLD(item); m != nil {
				return m
			}
		}
	case map[string]any:
		if isListingType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return searchLD(graph)
		}
	}
	return nil
}

func isListingType(t any) bool {
	switch v := t.(type) {
	case string:
		return listingTypes[strings.ToLower(v)]
	case []any:
		for _, item := range v {
			if isListingType(item) {
				return true
			}
		}
	}
	return false
}

func ldString(ld map[string]any, key string) string {
	switch v := ld[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		return ldString(v, "value")
	}
	return ""
}

func ldPrice(ld map[string]any) string {
	switch offers := ld["offers"].(type) {
	case map[string]any:
		return ldString(offers, "price")
	case []any:
		for _, o := range offers {
			if m, ok := o.(map[string]any); ok {
				if p := ldString(m, "price"); p != "" {
					return p
				}
			}
		}
	}
	return ""
}

func ldAddress(ld map[string]any) string {
	switch addr := ld["address"].(type) {
	case string:
		return strings.TrimSpace(addr)
	case map[string]any:
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion"} {
			if s, ok := addr[key].(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func ldAmenities(ld map[string]any) []string {
	items, ok := ld["amenityFeature"].([]any)
	if !ok {
		return nil
	}
	var features []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			features = append(features, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				features = append(features, name)
			}
		}
	}
	return features
}

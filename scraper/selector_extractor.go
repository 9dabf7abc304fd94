package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propscout/config"
	"propscout/models"
)

var detailKeys = []string{"bedrooms", "bathrooms", "sqft", "year_built"}

// SelectorExtractor reads listings with the CSS selectors of one site
// config. A selector may end in "@attr" to read an attribute instead of
// the element text. Without a card selector the whole page is one listing.
type SelectorExtractor struct {
	site *config.SiteConfig
}

func NewSelectorExtractor(site *config.SiteConfig) *SelectorExtractor {
	return &SelectorExtractor{site: site}
}

func (e *SelectorExtractor) Name() string {
	return e.site.ID
}

func (e *SelectorExtractor) Extract(doc *goquery.Document, pageURL string) ([]models.RawListing, error) {
	var cards *goquery.Selection
	if e.site.Card != "" {
		cards = doc.Find(e.site.Card)
	} else {
		cards = doc.Selection
	}

	var listings []models.RawListing
	cards.Each(func(_ int, card *goquery.Selection) {
		listing, ok := e.extractCard(card, pageURL)
		if ok {
			listings = append(listings, listing)
		}
	})
	return listings, nil
}

func (e *SelectorExtractor) extractCard(card *goquery.Selection, pageURL string) (models.RawListing, bool) {
	listing := models.RawListing{
		URL:    pageURL,
		Source: e.site.ID,
	}

	if title, ok := e.value(card, "title"); ok {
		listing.Title = title
	}
	if price, ok := e.value(card, "price"); ok {
		listing.Price = price
	}
	if location, ok := e.value(card, "location"); ok {
		listing.Location = location
	}
	if link, ok := e.value(card, "link"); ok && link != "" {
		listing.URL = resolveURL(pageURL, link)
	}

	details := map[string]any{}
	for _, key := range detailKeys {
		if v, ok := e.value(card, key); ok {
			if n := numericText(v); n != "" {
				details[key] = n
			} else {
				details[key] = v
			}
		}
	}
	if len(details) > 0 {
		listing.Details = details
	}

	if sel := e.site.Selectors["features"]; sel != "" {
		card.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if f := cleanText(s.Text()); f != "" {
				listing.Features = append(listing.Features, f)
			}
		})
	}

	return listing, listing.Title != nil || listing.Price != nil
}

// value returns the text (or attribute) matched by the named selector.
// ok is false when the site has no such selector or nothing matched.
func (e *SelectorExtractor) value(card *goquery.Selection, field string) (string, bool) {
	sel := e.site.Selectors[field]
	if sel == "" {
		return "", false
	}

	attr := ""
	if i := strings.LastIndex(sel, "@"); i > 0 {
		sel, attr = sel[:i], sel[i+1:]
	}

	match := card.Find(sel).First()
	if match.Length() == 0 {
		return "", false
	}
	if attr != "" {
		return match.Attr(attr)
	}
	return cleanText(match.Text()), true
}

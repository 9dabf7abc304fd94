package scraper

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propscout/config"
	"propscout/models"
)

// Extractor pulls raw listings out of a parsed page.
type Extractor interface {
	Name() string
	Extract(doc *goquery.Document, pageURL string) ([]models.RawListing, error)
}

var numberRegex = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)

// Registry picks an extractor by host. Hosts without a site config fall
// back to the generic extractor.
type Registry struct {
	sites    []*config.SiteConfig
	byID     map[string]*SelectorExtractor
	fallback Extractor
}

func NewRegistry(sites map[string]*config.SiteConfig) *Registry {
	r := &Registry{
		byID:     make(map[string]*SelectorExtractor),
		fallback: GenericExtractor{},
	}
	for _, site := range sites {
		r.sites = append(r.sites, site)
		r.byID[site.ID] = NewSelectorExtractor(site)
	}
	// Overlapping domains resolve in site ID order.
	sort.Slice(r.sites, func(i, j int) bool { return r.sites[i].ID < r.sites[j].ID })
	return r
}

// For returns the extractor for pageURL.
func (r *Registry) For(pageURL string) Extractor {
	if site := r.site(pageURL); site != nil {
		return r.byID[site.ID]
	}
	return r.fallback
}

// NeedsBrowser reports whether pageURL belongs to a site marked for
// browser rendering.
func (r *Registry) NeedsBrowser(pageURL string) bool {
	site := r.site(pageURL)
	return site != nil && site.Render == "browser"
}

func (r *Registry) site(pageURL string) *config.SiteConfig {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, site := range r.sites {
		for _, domain := range site.Domains {
			domain = strings.ToLower(domain)
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return site
			}
		}
	}
	return nil
}

// numericText returns the first number in s with separators kept, or ""
// when s holds none.
func numericText(s string) string {
	return numberRegex.FindString(s)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"

	"propscout/models"
)

// NormalizeCriteria returns c with set-valued fields deduplicated and sorted.
func NormalizeCriteria(c models.Criteria) models.Criteria {
	out := c
	out.Preferences.RequiredAmenities = sortedSet(c.Preferences.RequiredAmenities)
	return out
}

// CriteriaHash fingerprints c so that semantically equal criteria hash
// identically. The digest is the first 128 bits of SHA-256 over the
// RFC 8785 canonical JSON of the normalized criteria. Non-finite numbers
// are hashed by their string form, so every Criteria value has a hash.
func CriteriaHash(c models.Criteria) string {
	doc := criteriaDocument(NormalizeCriteria(c))
	canonical, err := CanonicalJSON(doc)
	if err != nil {
		canonical = fmt.Appendf(nil, "%v", doc)
	}
	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:16])
}

// CanonicalJSON encodes v as RFC 8785 canonical JSON: sorted keys, no
// insignificant whitespace, ES6 number formatting. Array order is kept.
func CanonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(data)
}

func criteriaDocument(c models.Criteria) map[string]any {
	amenities := c.Preferences.RequiredAmenities
	if amenities == nil {
		amenities = []string{}
	}
	return map[string]any{
		"price_range": map[string]any{
			"min": jsonNumber(c.PriceRange.Min),
			"max": jsonNumber(c.PriceRange.Max),
		},
		"location":      c.Location,
		"property_type": c.PropertyType,
		"preferences": map[string]any{
			"target_sqft":        jsonNumber(c.Preferences.TargetSqFt),
			"required_amenities": amenities,
		},
	}
}

// jsonNumber returns f, or its string form when JSON cannot represent it.
func jsonNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

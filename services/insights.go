package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"propscout/models"
)

const topMatchCount = 5

// Summarize aggregates a result set for the report view.
func Summarize(results []models.PropertyResult) models.Insights {
	ins := models.Insights{
		TotalProperties: len(results),
		TopMatches:      []models.PropertyResult{},
		Markers:         []models.MapMarker{},
	}
	if len(results) == 0 {
		return ins
	}

	var priced int
	var priceTotal, scoreTotal float64
	for _, r := range results {
		if r.Validation.IsValid {
			ins.ValidProperties++
		}

		if p := r.Listing.PriceValue; p > 0 {
			if priced == 0 || p < ins.MinPrice {
				ins.MinPrice = p
			}
			if p > ins.MaxPrice {
				ins.MaxPrice = p
			}
			priceTotal += p
			priced++
		}

		score := r.Analysis.MatchScore
		scoreTotal += score
		bucket := int(score * 10)
		if bucket > 9 {
			bucket = 9
		}
		if bucket < 0 {
			bucket = 0
		}
		ins.ScoreHistogram[bucket]++

		if la := r.Analysis.LocationAnalysis; la != nil && la.Coordinates != nil {
			ins.Markers = append(ins.Markers, models.MapMarker{
				Title:       r.Listing.Title,
				Price:       r.Listing.Price,
				MatchScore:  score,
				Coordinates: *la.Coordinates,
			})
		}
	}

	if priced > 0 {
		ins.AveragePrice = round(priceTotal/float64(priced), 2)
	}
	ins.AverageScore = round(scoreTotal/float64(len(results)), 2)

	ranked := make([]models.PropertyResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Analysis.MatchScore > ranked[j].Analysis.MatchScore
	})
	if len(ranked) > topMatchCount {
		ranked = ranked[:topMatchCount]
	}
	ins.TopMatches = ranked

	return ins
}

// PrintReport writes a plain-text summary of ins to w.
func PrintReport(w io.Writer, ins models.Insights) {
	sep := strings.Repeat("=", 54)
	thin := strings.Repeat("-", 54)

	fmt.Fprintf(w, "\n%s\n  PROPERTY MATCHES\n%s\n\n", sep, sep)

	fmt.Fprintf(w, "  Properties analyzed : %d\n", ins.TotalProperties)
	fmt.Fprintf(w, "  Valid listings      : %d\n", ins.ValidProperties)
	if ins.AveragePrice > 0 {
		fmt.Fprintf(w, "  Price range         : $%.0f - $%.0f (avg $%.0f)\n",
			ins.MinPrice, ins.MaxPrice, ins.AveragePrice)
	}
	fmt.Fprintf(w, "  Average match score : %.2f\n\n", ins.AverageScore)

	fmt.Fprintf(w, "  Score distribution\n  %s\n", thin)
	for i, n := range ins.ScoreHistogram {
		fmt.Fprintf(w, "  %.1f-%.1f  %-30s %d\n", float64(i)/10, float64(i+1)/10, strings.Repeat("#", n), n)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Top matches\n  %s\n", thin)
	if len(ins.TopMatches) == 0 {
		fmt.Fprintf(w, "  No properties found\n")
	}
	for i, r := range ins.TopMatches {
		fmt.Fprintf(w, "  %d. %-38s %.2f\n", i+1, truncate(r.Listing.Title, 38), r.Analysis.MatchScore)
		if r.Listing.Location != "" {
			fmt.Fprintf(w, "     %s\n", r.Listing.Location)
		}
		for _, rec := range r.Analysis.Recommendations {
			fmt.Fprintf(w, "     - %s\n", rec)
		}
	}
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

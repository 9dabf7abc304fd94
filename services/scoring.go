package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"propscout/config"
	"propscout/geo"
	"propscout/logging"
	"propscout/models"
)

// Scorer turns a cleaned listing plus search criteria into an Analysis.
// Given the same geocoder and neighborhood answers it is deterministic.
type Scorer struct {
	cfg           config.ScoringConfig
	geocoder      geo.Geocoder
	neighborhoods NeighborhoodScorer

	// Now is the clock used for timestamps and property age.
	Now func() time.Time
}

func NewScorer(cfg config.ScoringConfig, geocoder geo.Geocoder, neighborhoods NeighborhoodScorer) *Scorer {
	return &Scorer{
		cfg:           cfg,
		geocoder:      geocoder,
		neighborhoods: neighborhoods,
		Now:           time.Now,
	}
}

// Score never fails: lookups that error are recorded on the analysis and
// contribute zero.
func (s *Scorer) Score(ctx context.Context, listing models.Listing, criteria models.Criteria) models.Analysis {
	now := s.Now()
	analysis := models.Analysis{Timestamp: now}

	if listing.HasPrice() {
		analysis.PriceAnalysis = analyzePrice(listing.PriceValue, criteria.PriceRange)
		if analysis.PriceAnalysis.WithinRange {
			analysis.SubScores.Price = s.cfg.PriceWeight
		}
	}

	if listing.Location != "" {
		analysis.LocationAnalysis = s.analyzeLocation(ctx, listing.Location, criteria.Location)
		if d := analysis.LocationAnalysis.DistanceMiles; d != nil {
			analysis.SubScores.Location = round(s.cfg.LocationWeight*s.distanceMultiplier(*d), 4)
		}
	}

	analysis.DetailsAnalysis = analyzeDetails(listing, criteria.Preferences)
	detailsFit := (analysis.DetailsAnalysis.SizeScore + analysis.DetailsAnalysis.AmenitiesScore) / 2
	analysis.SubScores.Details = round(s.cfg.DetailsWeight*detailsFit, 4)

	analysis.InvestmentPotential = s.analyzeInvestment(listing, analysis.LocationAnalysis, now)
	analysis.SubScores.Investment = round(s.cfg.InvestmentWeight*analysis.InvestmentPotential.Score, 4)

	total := analysis.SubScores.Price + analysis.SubScores.Location +
		analysis.SubScores.Details + analysis.SubScores.Investment
	analysis.MatchScore = round(clamp(total, 0, 1), 2)

	analysis.Recommendations = s.recommend(analysis, criteria)
	return analysis
}

func analyzePrice(price float64, r models.PriceRange) *models.PriceAnalysis {
	pa := &models.PriceAnalysis{
		Price:             price,
		WithinRange:       r.Contains(price),
		DifferenceFromMin: price - r.Min,
		DifferenceFromMax: r.Max - price,
	}
	if r.Min > 0 {
		pa.PercentAboveMin = round((price-r.Min)/r.Min*100, 2)
	}
	if r.Max > 0 {
		pa.PercentBelowMax = round((r.Max-price)/r.Max*100, 2)
	}
	return pa
}

func (s *Scorer) analyzeLocation(ctx context.Context, location, target string) *models.LocationAnalysis {
	la := &models.LocationAnalysis{}

	var propCoords *models.Coordinates
	if s.geocoder != nil {
		coords, found, err := s.geocoder.Geocode(ctx, location)
		switch {
		case err != nil:
			la.Error = err.Error()
		case !found:
			la.Error = fmt.Sprintf("location %q not found", location)
		default:
			propCoords = &coords
			la.Coordinates = propCoords
		}

		if propCoords != nil && target != "" {
			targetCoords, found, err := s.geocoder.Geocode(ctx, target)
			switch {
			case err != nil:
				la.Error = err.Error()
			case !found:
				la.Error = fmt.Sprintf("target location %q not found", target)
			default:
				d := round(geo.DistanceMiles(*propCoords, targetCoords), 2)
				la.DistanceMiles = &d
			}
		}
	} else {
		la.Error = "no geocoder configured"
	}

	if s.neighborhoods != nil {
		score, err := s.neighborhoods.NeighborhoodScore(ctx, location, propCoords)
		if err != nil {
			logging.Warnf("Neighborhood score for %q: %v", location, err)
		} else {
			la.NeighborhoodScore = clamp(score, 0, 1)
		}
	}

	return la
}

// distanceMultiplier is the step function over DistanceSteps; beyond the
// last step the location contributes nothing.
func (s *Scorer) distanceMultiplier(miles float64) float64 {
	for _, step := range s.cfg.DistanceSteps {
		if miles <= step.MaxMiles {
			return step.Multiplier
		}
	}
	return 0
}

func analyzeDetails(listing models.Listing, prefs models.Preferences) models.DetailsAnalysis {
	da := models.DetailsAnalysis{MissingFeatures: []string{}}

	if prefs.TargetSqFt > 0 && listing.Details.SqFt > 0 {
		diff := math.Abs(listing.Details.SqFt - prefs.TargetSqFt)
		da.SizeScore = round(math.Max(0, 1-diff/prefs.TargetSqFt), 4)
	}

	if len(prefs.RequiredAmenities) == 0 {
		da.AmenitiesScore = 1
		return da
	}

	found := 0
	for _, amenity := range prefs.RequiredAmenities {
		if hasFeature(listing.Features, amenity) {
			found++
		} else {
			da.MissingFeatures = append(da.MissingFeatures, amenity)
		}
	}
	da.AmenitiesScore = round(float64(found)/float64(len(prefs.RequiredAmenities)), 4)
	return da
}

func hasFeature(features []string, amenity string) bool {
	amenity = strings.ToLower(strings.TrimSpace(amenity))
	if amenity == "" {
		return true
	}
	for _, f := range features {
		if strings.Contains(strings.ToLower(f), amenity) {
			return true
		}
	}
	return false
}

func (s *Scorer) analyzeInvestment(listing models.Listing, la *models.LocationAnalysis, now time.Time) models.InvestmentPotential {
	ip := models.InvestmentPotential{
		Factors:       []string{},
		Risks:         []string{},
		Opportunities: []string{},
	}
	score := 0.0

	if la != nil && la.NeighborhoodScore > s.cfg.PrimeNeighborhood {
		score += 0.3
		ip.Factors = append(ip.Factors, "Prime location")
		ip.Opportunities = append(ip.Opportunities,
			fmt.Sprintf("Neighborhood rates %.2f, in the top tier of the area", la.NeighborhoodScore))
	}

	if listing.PriceValue > 0 && listing.Details.SqFt > 0 && s.cfg.AvgPricePerSqFt > 0 {
		perSqFt := listing.PriceValue / listing.Details.SqFt
		if perSqFt < s.cfg.AvgPricePerSqFt {
			score += 0.2
			ip.Factors = append(ip.Factors, "Below market")
			ip.Opportunities = append(ip.Opportunities,
				fmt.Sprintf("Priced at $%.0f/sqft against a $%.0f/sqft market average", perSqFt, s.cfg.AvgPricePerSqFt))
		}
	}

	if listing.Details.YearBuilt > 0 {
		age := now.Year() - listing.Details.YearBuilt
		switch {
		case age < s.cfg.NewConstructionAge:
			score += 0.2
			ip.Factors = append(ip.Factors, "New construction")
			ip.Opportunities = append(ip.Opportunities,
				fmt.Sprintf("Built in %d, little near-term upkeep expected", listing.Details.YearBuilt))
		case age > s.cfg.MaintenanceRiskAge:
			score -= 0.1
			ip.Factors = append(ip.Factors, "Maintenance risk")
			ip.Risks = append(ip.Risks,
				fmt.Sprintf("Built in %d; budget for maintenance and system upgrades", listing.Details.YearBuilt))
		}
	}

	ip.Score = round(clamp(score, 0, 1), 2)
	return ip
}

// recommend applies the recommendation rules in order; each adds at most
// one headline line, and the investment rules append their detail lines.
func (s *Scorer) recommend(a models.Analysis, criteria models.Criteria) []string {
	recs := []string{}

	if pa := a.PriceAnalysis; pa != nil {
		if !pa.WithinRange {
			recs = append(recs, fmt.Sprintf("Price $%.0f is outside your $%.0f-$%.0f range",
				pa.Price, criteria.PriceRange.Min, criteria.PriceRange.Max))
		} else if pa.Price < criteria.PriceRange.Min*(1+s.cfg.NegotiationMargin) {
			recs = append(recs, "Price sits near the bottom of your range; consider negotiating")
		}
	}

	if la := a.LocationAnalysis; la != nil && la.DistanceMiles != nil {
		d := *la.DistanceMiles
		if d > s.cfg.LongCommuteMiles {
			recs = append(recs, fmt.Sprintf("%.1f miles from %s; expect a long commute", d, criteria.Location))
		}
		if d < s.cfg.GreatLocationMiles {
			recs = append(recs, fmt.Sprintf("Excellent location, only %.1f miles from %s", d, criteria.Location))
		}
	}

	ip := a.InvestmentPotential
	if ip.Score > s.cfg.StrongInvestment {
		recs = append(recs, "Strong investment potential")
		recs = append(recs, ip.Opportunities...)
	}
	if ip.Score < s.cfg.WeakInvestment {
		recs = append(recs, "Exercise caution: limited investment upside")
		recs = append(recs, ip.Risks...)
	}

	return recs
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

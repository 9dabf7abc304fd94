package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"propscout/config"
	"propscout/models"
)

type stubGeocoder struct {
	coords map[string]models.Coordinates
	err    error
	calls  int
}

func (g *stubGeocoder) Geocode(_ context.Context, address string) (models.Coordinates, bool, error) {
	g.calls++
	if g.err != nil {
		return models.Coordinates{}, false, g.err
	}
	c, ok := g.coords[address]
	return c, ok, nil
}

type fixedNeighborhood float64

func (f fixedNeighborhood) NeighborhoodScore(context.Context, string, *models.Coordinates) (float64, error) {
	return float64(f), nil
}

var sf = models.Coordinates{Latitude: 37.7749, Longitude: -122.4194}

func testCriteria() models.Criteria {
	return models.Criteria{
		PriceRange: models.PriceRange{Min: 300_000, Max: 800_000},
		Location:   "San Francisco, CA",
		Preferences: models.Preferences{
			TargetSqFt:        1500,
			RequiredAmenities: []string{"parking", "garden"},
		},
	}
}

func newTestScorer(geocoder *stubGeocoder, neighborhood float64) *Scorer {
	s := NewScorer(config.DefaultScoring(), geocoder, fixedNeighborhood(neighborhood))
	s.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScorePriceWithinRange(t *testing.T) {
	geocoder := &stubGeocoder{coords: map[string]models.Coordinates{
		"Mission District, San Francisco": sf,
		"San Francisco, CA":               sf,
	}}
	s := newTestScorer(geocoder, 0.5)

	listing := models.Listing{
		Title:      "Victorian",
		Price:      "500000",
		PriceValue: 500_000,
		Location:   "Mission District, San Francisco",
		Details:    models.Details{Bedrooms: 3, Bathrooms: 2, SqFt: 1500, YearBuilt: 1990},
		Features:   []string{"Off-street Parking", "Garden"},
	}

	a := s.Score(context.Background(), listing, testCriteria())

	if !approx(a.SubScores.Price, 0.3) {
		t.Fatalf("expected price sub-score 0.3, got %v", a.SubScores.Price)
	}
	if !a.PriceAnalysis.WithinRange {
		t.Fatalf("expected price within range")
	}
	if !approx(a.SubScores.Location, 0.3) {
		t.Fatalf("expected full location score at zero distance, got %v", a.SubScores.Location)
	}
	if !approx(a.SubScores.Details, 0.2) {
		t.Fatalf("expected full details score, got %v", a.SubScores.Details)
	}
	if a.MatchScore < 0 || a.MatchScore > 1 {
		t.Fatalf("match score out of range: %v", a.MatchScore)
	}
	if !approx(a.MatchScore, 0.8) {
		t.Fatalf("expected match score 0.8, got %v", a.MatchScore)
	}
	if a.InvestmentPotential.Score != 0 {
		t.Fatalf("expected no investment upside, got %+v", a.InvestmentPotential)
	}
}

func TestScorePriceIsBinary(t *testing.T) {
	s := newTestScorer(&stubGeocoder{}, 0)
	criteria := testCriteria()

	tests := []struct {
		price float64
		want  float64
	}{
		{300_000, 0.3},
		{800_000, 0.3},
		{299_999, 0},
		{800_001, 0},
		{650_000, 0.3},
	}

	for _, tt := range tests {
		listing := models.Listing{
			Price:      strconv.FormatFloat(tt.price, 'f', -1, 64),
			PriceValue: tt.price,
		}
		a := s.Score(context.Background(), listing, criteria)
		if !approx(a.SubScores.Price, tt.want) {
			t.Errorf("price %v: got sub-score %v, want %v", tt.price, a.SubScores.Price, tt.want)
		}
	}
}

func TestDistanceMultiplierSteps(t *testing.T) {
	s := NewScorer(config.DefaultScoring(), nil, nil)

	tests := []struct {
		miles float64
		want  float64
	}{
		{0, 0.3},
		{5.0, 0.3},
		{5.01, 0.21},
		{10, 0.21},
		{15, 0.12},
		{20, 0.12},
		{25, 0},
	}

	for _, tt := range tests {
		got := round(s.cfg.LocationWeight*s.distanceMultiplier(tt.miles), 4)
		if !approx(got, tt.want) {
			t.Errorf("%v miles: got %v, want %v", tt.miles, got, tt.want)
		}
	}
}

func TestScoreGeocodeErrorIsRecorded(t *testing.T) {
	geocoder := &stubGeocoder{err: errors.New("geocoder unavailable")}
	s := newTestScorer(geocoder, 0.5)

	listing := models.Listing{Price: "500000", PriceValue: 500_000, Location: "Nowhere"}
	a := s.Score(context.Background(), listing, testCriteria())

	if a.LocationAnalysis == nil || a.LocationAnalysis.Error == "" {
		t.Fatalf("expected location error to be recorded, got %+v", a.LocationAnalysis)
	}
	if a.LocationAnalysis.DistanceMiles != nil {
		t.Fatalf("expected no distance on geocode failure")
	}
	if a.SubScores.Location != 0 {
		t.Fatalf("expected zero location score, got %v", a.SubScores.Location)
	}
}

func TestScoreUnknownLocation(t *testing.T) {
	geocoder := &stubGeocoder{coords: map[string]models.Coordinates{"San Francisco, CA": sf}}
	s := newTestScorer(geocoder, 0.5)

	a := s.Score(context.Background(), models.Listing{Location: "Atlantis"}, testCriteria())
	if !strings.Contains(a.LocationAnalysis.Error, "not found") {
		t.Fatalf("expected not found error, got %q", a.LocationAnalysis.Error)
	}
	if geocoder.calls != 1 {
		t.Fatalf("target should not be geocoded when the listing is unknown, got %d calls", geocoder.calls)
	}
}

func TestAnalyzeDetails(t *testing.T) {
	prefs := models.Preferences{TargetSqFt: 2000, RequiredAmenities: []string{"Pool", "garage"}}

	tests := []struct {
		name        string
		listing     models.Listing
		wantSize    float64
		wantAmenity float64
		wantMissing []string
	}{
		{
			name:        "half size one amenity",
			listing:     models.Listing{Details: models.Details{SqFt: 1000}, Features: []string{"Heated pool"}},
			wantSize:    0.5,
			wantAmenity: 0.5,
			wantMissing: []string{"garage"},
		},
		{
			name:        "oversized caps at zero",
			listing:     models.Listing{Details: models.Details{SqFt: 5000}, Features: []string{"2-car Garage", "POOL"}},
			wantSize:    0,
			wantAmenity: 1,
		},
		{
			name:        "missing sqft",
			listing:     models.Listing{},
			wantSize:    0,
			wantAmenity: 0,
			wantMissing: []string{"Pool", "garage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			da := analyzeDetails(tt.listing, prefs)
			if !approx(da.SizeScore, tt.wantSize) {
				t.Errorf("size score = %v; want %v", da.SizeScore, tt.wantSize)
			}
			if !approx(da.AmenitiesScore, tt.wantAmenity) {
				t.Errorf("amenities score = %v; want %v", da.AmenitiesScore, tt.wantAmenity)
			}
			if len(da.MissingFeatures) != len(tt.wantMissing) {
				t.Fatalf("missing = %v; want %v", da.MissingFeatures, tt.wantMissing)
			}
			for i := range tt.wantMissing {
				if da.MissingFeatures[i] != tt.wantMissing[i] {
					t.Errorf("missing[%d] = %q; want %q", i, da.MissingFeatures[i], tt.wantMissing[i])
				}
			}
		})
	}
}

func TestAnalyzeDetailsNoRequiredAmenities(t *testing.T) {
	da := analyzeDetails(models.Listing{}, models.Preferences{})
	if da.AmenitiesScore != 1 {
		t.Fatalf("expected amenities score 1 with nothing required, got %v", da.AmenitiesScore)
	}
}

func TestInvestmentHeuristic(t *testing.T) {
	s := newTestScorer(&stubGeocoder{}, 0)
	now := s.Now()

	tests := []struct {
		name         string
		listing      models.Listing
		neighborhood float64
		want         float64
		wantRisks    int
	}{
		{
			name:         "prime new and cheap",
			listing:      models.Listing{PriceValue: 400_000, Details: models.Details{SqFt: 2000, YearBuilt: 2020}},
			neighborhood: 0.9,
			want:         0.7,
		},
		{
			name:         "old building clamps at zero",
			listing:      models.Listing{PriceValue: 900_000, Details: models.Details{SqFt: 1000, YearBuilt: 1950}},
			neighborhood: 0.2,
			want:         0,
			wantRisks:    1,
		},
		{
			name:         "old but prime",
			listing:      models.Listing{PriceValue: 900_000, Details: models.Details{SqFt: 1000, YearBuilt: 1950}},
			neighborhood: 0.8,
			want:         0.2,
			wantRisks:    1,
		},
		{
			name:         "no data",
			listing:      models.Listing{},
			neighborhood: 0.7,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := &models.LocationAnalysis{NeighborhoodScore: tt.neighborhood}
			ip := s.analyzeInvestment(tt.listing, la, now)
			if !approx(ip.Score, tt.want) {
				t.Errorf("score = %v; want %v", ip.Score, tt.want)
			}
			if len(ip.Risks) != tt.wantRisks {
				t.Errorf("risks = %v; want %d", ip.Risks, tt.wantRisks)
			}
		})
	}
}

func TestRecommendationsOrder(t *testing.T) {
	s := newTestScorer(&stubGeocoder{}, 0)
	criteria := testCriteria()

	far := 32.5
	a := models.Analysis{
		PriceAnalysis:    &models.PriceAnalysis{Price: 900_000, WithinRange: false},
		LocationAnalysis: &models.LocationAnalysis{DistanceMiles: &far},
		InvestmentPotential: models.InvestmentPotential{
			Score: 0,
			Risks: []string{"Built in 1950; budget for maintenance and system upgrades"},
		},
	}

	recs := s.recommend(a, criteria)
	if len(recs) != 4 {
		t.Fatalf("expected 4 recommendations, got %v", recs)
	}
	if !strings.Contains(recs[0], "outside your") {
		t.Errorf("first recommendation should be price, got %q", recs[0])
	}
	if !strings.Contains(recs[1], "long commute") {
		t.Errorf("second recommendation should be commute, got %q", recs[1])
	}
	if !strings.HasPrefix(recs[2], "Exercise caution") {
		t.Errorf("third recommendation should be caution, got %q", recs[2])
	}
	if !strings.Contains(recs[3], "1950") {
		t.Errorf("fourth recommendation should be the risk, got %q", recs[3])
	}
}

func TestRecommendationsNegotiateAndExcellentLocation(t *testing.T) {
	s := newTestScorer(&stubGeocoder{}, 0)
	criteria := testCriteria()

	near := 1.2
	a := models.Analysis{
		PriceAnalysis:    &models.PriceAnalysis{Price: 310_000, WithinRange: true},
		LocationAnalysis: &models.LocationAnalysis{DistanceMiles: &near},
		InvestmentPotential: models.InvestmentPotential{
			Score:         0.8,
			Opportunities: []string{"a", "b"},
		},
	}

	recs := s.recommend(a, criteria)
	want := []string{"negotiating", "Excellent location", "Strong investment", "a", "b"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d recommendations, got %v", len(want), recs)
	}
	for i, w := range want {
		if !strings.Contains(recs[i], w) {
			t.Errorf("recs[%d] = %q; want it to contain %q", i, recs[i], w)
		}
	}
}

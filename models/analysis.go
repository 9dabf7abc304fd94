package models

import "time"

// Analysis is the scoring result for one listing against one Criteria.
// It is built once and never mutated afterwards.
type Analysis struct {
	MatchScore          float64             `json:"match_score"`
	SubScores           SubScores           `json:"sub_scores"`
	PriceAnalysis       *PriceAnalysis      `json:"price_analysis,omitempty"`
	LocationAnalysis    *LocationAnalysis   `json:"location_analysis,omitempty"`
	DetailsAnalysis     DetailsAnalysis     `json:"details_analysis"`
	InvestmentPotential InvestmentPotential `json:"investment_potential"`
	Recommendations     []string            `json:"recommendations"`
	Timestamp           time.Time           `json:"timestamp"`
}

// SubScores are the weighted contributions that sum to MatchScore.
type SubScores struct {
	Price      float64 `json:"price"`
	Location   float64 `json:"location"`
	Details    float64 `json:"details"`
	Investment float64 `json:"investment"`
}

type PriceAnalysis struct {
	Price             float64 `json:"price"`
	WithinRange       bool    `json:"within_range"`
	DifferenceFromMin float64 `json:"difference_from_min"`
	DifferenceFromMax float64 `json:"difference_from_max"`
	PercentAboveMin   float64 `json:"percent_above_min"`
	PercentBelowMax   float64 `json:"percent_below_max"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type LocationAnalysis struct {
	DistanceMiles     *float64     `json:"distance_miles,omitempty"`
	Coordinates       *Coordinates `json:"coordinates,omitempty"`
	NeighborhoodScore float64      `json:"neighborhood_score"`
	Error             string       `json:"error,omitempty"`
}

type DetailsAnalysis struct {
	SizeScore       float64  `json:"size_score"`
	AmenitiesScore  float64  `json:"amenities_score"`
	MissingFeatures []string `json:"missing_features"`
}

type InvestmentPotential struct {
	Score         float64  `json:"score"`
	Factors       []string `json:"factors"`
	Risks         []string `json:"risks"`
	Opportunities []string `json:"opportunities"`
}

// PropertyResult is what the presentation layer renders per listing.
type PropertyResult struct {
	Listing    Listing          `json:"listing"`
	Validation ValidationResult `json:"validation"`
	Analysis   Analysis         `json:"analysis"`
	Error      string           `json:"error,omitempty"`
}

// Insights aggregates a result set for the analytics view.
type Insights struct {
	TotalProperties int              `json:"total_properties"`
	ValidProperties int              `json:"valid_properties"`
	AveragePrice    float64          `json:"average_price"`
	MinPrice        float64          `json:"min_price"`
	MaxPrice        float64          `json:"max_price"`
	AverageScore    float64          `json:"average_score"`
	ScoreHistogram  [10]int          `json:"score_histogram"`
	TopMatches      []PropertyResult `json:"top_matches"`
	Markers         []MapMarker      `json:"markers"`
}

type MapMarker struct {
	Title       string      `json:"title"`
	Price       string      `json:"price"`
	MatchScore  float64     `json:"match_score"`
	Coordinates Coordinates `json:"coordinates"`
}

package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCached    RunStatus = "cached"
	RunStatusFailed    RunStatus = "failed"
)

type SearchRun struct {
	ID            string     `json:"id" db:"id"`
	CriteriaHash  string     `json:"criteria_hash" db:"criteria_hash"`
	Criteria      Criteria   `json:"criteria" db:"criteria"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	SourcesTotal  int        `json:"sources_total" db:"sources_total"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsValid int        `json:"listings_valid" db:"listings_valid"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
	TopScore      float64    `json:"top_score" db:"top_score"`
}

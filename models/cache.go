package models

import (
	"encoding/json"
	"time"
)

const (
	TaskScrape   = "scrape"
	TaskValidate = "validate"
	TaskAnalyze  = "analyze"
)

// CacheEntry is the single persisted search result document.
type CacheEntry struct {
	Result         []TaskOutput `json:"result"`
	SearchCriteria Criteria     `json:"search_criteria"`
	CriteriaHash   string       `json:"criteria_hash"`
	Timestamp      time.Time    `json:"timestamp"`
}

// TaskOutput is one pipeline stage's output. Raw holds the stage output as JSON.
type TaskOutput struct {
	Task        string          `json:"task"`
	Description string          `json:"description"`
	Raw         json.RawMessage `json:"raw"`
}

// Properties decodes the analyze stage output.
func (e *CacheEntry) Properties() ([]PropertyResult, error) {
	for _, out := range e.Result {
		if out.Task != TaskAnalyze {
			continue
		}
		var results []PropertyResult
		if err := json.Unmarshal(out.Raw, &results); err != nil {
			return nil, err
		}
		return results, nil
	}
	return nil, nil
}

// RunResult is returned from a pipeline run.
type RunResult struct {
	RunID     string
	Entry     *CacheEntry
	FromCache bool
	Errors    int
}

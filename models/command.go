package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdSearch        CommandType = "search"
	CmdPause         CommandType = "pause"
	CmdResume        CommandType = "resume"
	CmdCheckListings CommandType = "check_listings"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

// CommandParams is the payload of a search command queued by the dashboard.
type CommandParams struct {
	Criteria *Criteria `json:"criteria,omitempty"`
	URLs     []string  `json:"urls,omitempty"`
	Force    bool      `json:"force,omitempty"`
}

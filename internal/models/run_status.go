package models

import "time"

// Run lifecycle states.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunEmpty     = "empty"
	RunFailed    = "failed"
)

// RunStatus tracks the state of a harvest run.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	Terms     []string  `json:"terms"`
	Locations []string  `json:"locations,omitempty"`
	Status    string    `json:"status"`
	Records   int       `json:"records"`
	Failures  int       `json:"failures"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

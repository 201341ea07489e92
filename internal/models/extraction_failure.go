package models

import "time"

// ExtractionFailure describes a list row that was consumed without
// producing a record.
type ExtractionFailure struct {
	RunID     string    `json:"run_id"`
	TargetURL string    `json:"target_url"`
	Position  int       `json:"position"`
	Error     string    `json:"error"`
	Snapshot  string    `json:"snapshot,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

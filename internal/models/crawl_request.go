package models

import "time"

// CrawlRequest is a queued harvest run.
type CrawlRequest struct {
	RunID     string    `json:"run_id"`
	Terms     []string  `json:"terms"`
	Locations []string  `json:"locations,omitempty"`
	Limit     int       `json:"limit"`
	UseProxy  bool      `json:"use_proxy"`
	CreatedAt time.Time `json:"created_at"`
}

package models

// CrawlTarget is one (term, location) query resolved to a listing URL.
type CrawlTarget struct {
	Term     string `json:"term"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url"`
}

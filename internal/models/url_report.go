package models

import "time"

// URLReport is the throughput of one finished listing URL.
type URLReport struct {
	URL               string        `json:"url"`
	ItemsSeen         int           `json:"items_seen"`
	Elapsed           time.Duration `json:"elapsed"`
	TotalElapsed      time.Duration `json:"total_elapsed"`
	SecondsPerItem    float64       `json:"seconds_per_item"`
	SecondsPerItemRun float64       `json:"seconds_per_item_run"`
}

package models

// CrawlState is the pagination state of one target URL.
type CrawlState struct {
	// DeclaredTotal is the count the listing header reports, 0 if unreadable.
	DeclaredTotal int `json:"declared_total"`
	// ItemsSeen is the cursor into the visible list; it only grows.
	ItemsSeen int `json:"items_seen"`
	// MoreAvailable turns false once "load more" is gone or stops revealing.
	MoreAvailable bool `json:"more_available"`
	// BaseOffset is one past the highest store position written before this
	// URL started (store.End()), so rows never land on earlier positions.
	BaseOffset int `json:"base_offset"`
	// Failures counts rows that were consumed without producing a record.
	Failures int `json:"failures"`
}

// Position returns the absolute store position of the cursor.
func (s CrawlState) Position() int {
	return s.BaseOffset + s.ItemsSeen
}

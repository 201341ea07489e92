package crawler

import (
	"sync"
	"sync/atomic"
	"time"

	"karriere-harvester/internal/models"
)

// Tracker measures wall-clock throughput per URL and for the whole run.
// It is purely observational.
type Tracker struct {
	now func() time.Time

	mu         sync.Mutex
	start      time.Time
	urlStart   time.Time
	totalItems int

	extracted atomic.Int64
	failures  atomic.Int64
	urls      atomic.Int64
}

// TrackerSnapshot is a point-in-time copy of the tracker counters.
type TrackerSnapshot struct {
	RecordsExtracted   int64
	ExtractionFailures int64
	URLsFinished       int64
}

// NewTracker returns a tracker reading the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Start marks the beginning of the run.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = t.now()
	t.urlStart = t.start
	t.totalItems = 0
}

// BeginURL marks the beginning of one URL.
func (t *Tracker) BeginURL() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.urlStart = t.now()
}

// EndURL closes the current URL after itemsSeen rows were consumed.
func (t *Tracker) EndURL(url string, itemsSeen int) models.URLReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.totalItems += itemsSeen
	t.urls.Add(1)

	elapsed := now.Sub(t.urlStart)
	total := now.Sub(t.start)
	return models.URLReport{
		URL:               url,
		ItemsSeen:         itemsSeen,
		Elapsed:           elapsed,
		TotalElapsed:      total,
		SecondsPerItem:    elapsed.Seconds() / float64(max(1, itemsSeen)),
		SecondsPerItemRun: total.Seconds() / float64(max(1, t.totalItems)),
	}
}

// RecordSuccess counts one extracted record.
func (t *Tracker) RecordSuccess() {
	t.extracted.Add(1)
}

// RecordFailure counts one dropped row.
func (t *Tracker) RecordFailure() {
	t.failures.Add(1)
}

// Snapshot returns the counters.
func (t *Tracker) Snapshot() TrackerSnapshot {
	return TrackerSnapshot{
		RecordsExtracted:   t.extracted.Load(),
		ExtractionFailures: t.failures.Load(),
		URLsFinished:       t.urls.Load(),
	}
}

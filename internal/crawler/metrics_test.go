package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"karriere-harvester/internal/models"
)

func TestTrackerReports(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return clock }

	tr.Start()
	clock = clock.Add(2 * time.Second)
	tr.BeginURL()
	clock = clock.Add(10 * time.Second)
	first := tr.EndURL("u1", 5)

	assert.Equal(t, 10*time.Second, first.Elapsed)
	assert.Equal(t, 12*time.Second, first.TotalElapsed)
	assert.InDelta(t, 2.0, first.SecondsPerItem, 1e-9)
	assert.InDelta(t, 2.4, first.SecondsPerItemRun, 1e-9)

	tr.BeginURL()
	clock = clock.Add(3 * time.Second)
	second := tr.EndURL("u2", 0)
	assert.InDelta(t, 3.0, second.SecondsPerItem, 1e-9, "zero items divide by one")
	assert.InDelta(t, 3.0, second.SecondsPerItemRun, 1e-9)

	tr.RecordSuccess()
	tr.RecordFailure()
	tr.RecordFailure()
	assert.Equal(t, TrackerSnapshot{RecordsExtracted: 1, ExtractionFailures: 2, URLsFinished: 2}, tr.Snapshot())
}

func TestObserversFanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers{a, NopObserver{}, b}
	ctx := context.Background()

	obs.RecordExtracted(ctx, models.CrawlTarget{}, 3, models.JobRecord{ID: "x"})
	obs.ExtractionFailed(ctx, models.ExtractionFailure{Position: 4})
	obs.URLFinished(ctx, models.CrawlTarget{}, models.URLReport{URL: "u"})

	for _, o := range []*recordingObserver{a, b} {
		assert.Equal(t, []int{3}, o.positions)
		assert.Len(t, o.failures, 1)
		assert.Len(t, o.reports, 1)
	}
}

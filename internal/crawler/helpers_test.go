package crawler

import (
	"context"
	"sync"
	"time"

	"karriere-harvester/internal/access"
	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/models"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.WaitTimeout = 30 * time.Millisecond
	opts.PollInterval = time.Millisecond
	opts.Retry = access.RetryPolicy{MaxAttempts: 3, Retryable: browser.IsStale}
	opts.ConsentWait = 20 * time.Millisecond
	opts.ConsentSettle = 0
	opts.LoadMoreWait = 20 * time.Millisecond
	opts.OverlayWait = 10 * time.Millisecond
	return opts
}

func testLayer(engine browser.Engine) *access.Layer {
	return access.New(engine,
		access.WithTimeout(30*time.Millisecond),
		access.WithPollInterval(time.Millisecond),
		access.WithRetryPolicy(access.RetryPolicy{MaxAttempts: 3, Retryable: browser.IsStale}),
	)
}

type recordingObserver struct {
	mu        sync.Mutex
	extracted []models.JobRecord
	positions []int
	failures  []models.ExtractionFailure
	reports   []models.URLReport
}

func (o *recordingObserver) RecordExtracted(_ context.Context, _ models.CrawlTarget, pos int, rec models.JobRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extracted = append(o.extracted, rec)
	o.positions = append(o.positions, pos)
}

func (o *recordingObserver) ExtractionFailed(_ context.Context, f models.ExtractionFailure) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, f)
}

func (o *recordingObserver) URLFinished(_ context.Context, _ models.CrawlTarget, r models.URLReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
}

type recordingExporter struct {
	calls   int
	records []models.JobRecord
	terms   []string
	err     error
}

func (e *recordingExporter) Export(records []models.JobRecord, terms, _ []string, _ time.Time) (string, error) {
	e.calls++
	e.records = records
	e.terms = terms
	if e.err != nil {
		return "", e.err
	}
	return "out.csv", nil
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

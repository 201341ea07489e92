package crawler

import (
	"context"

	"karriere-harvester/internal/models"
)

// Observer is told about every row a crawl consumes.
type Observer interface {
	RecordExtracted(ctx context.Context, target models.CrawlTarget, position int, rec models.JobRecord)
	ExtractionFailed(ctx context.Context, failure models.ExtractionFailure)
	URLFinished(ctx context.Context, target models.CrawlTarget, report models.URLReport)
}

// Pacer delays navigations and load-more clicks. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RecordExtracted(context.Context, models.CrawlTarget, int, models.JobRecord) {}
func (NopObserver) ExtractionFailed(context.Context, models.ExtractionFailure)                 {}
func (NopObserver) URLFinished(context.Context, models.CrawlTarget, models.URLReport)          {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) RecordExtracted(ctx context.Context, target models.CrawlTarget, position int, rec models.JobRecord) {
	for _, obs := range o {
		obs.RecordExtracted(ctx, target, position, rec)
	}
}

func (o Observers) ExtractionFailed(ctx context.Context, failure models.ExtractionFailure) {
	for _, obs := range o {
		obs.ExtractionFailed(ctx, failure)
	}
}

func (o Observers) URLFinished(ctx context.Context, target models.CrawlTarget, report models.URLReport) {
	for _, obs := range o {
		obs.URLFinished(ctx, target, report)
	}
}

func pace(ctx context.Context, p Pacer) error {
	if p == nil {
		return nil
	}
	return p.Wait(ctx)
}

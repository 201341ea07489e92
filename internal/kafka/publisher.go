package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/models"
)

// Publisher writes harvest output to the results, edges and dead-letter
// topics. A nil writer disables its topic. It also serves as a crawl
// observer: failed rows go to the dead-letter topic as they happen.
type Publisher struct {
	results MessageWriter
	edges   MessageWriter
	dlq     MessageWriter
	log     logger.Logger
	now     func() time.Time
}

// NewPublisher builds a publisher over the given writers.
func NewPublisher(results, edges, dlq MessageWriter, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{results: results, edges: edges, dlq: dlq, log: log, now: time.Now}
}

// PublishRecords writes every record to the results topic followed by its
// derived edges. It stops at the first write error.
func (p *Publisher) PublishRecords(ctx context.Context, runID string, records []models.JobRecord) error {
	for _, rec := range records {
		if err := p.publishRecord(ctx, runID, rec); err != nil {
			return fmt.Errorf("publish record %s: %w", rec.ID, err)
		}
		if err := p.publishEdges(ctx, runID, rec); err != nil {
			return fmt.Errorf("publish edges %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (p *Publisher) publishRecord(ctx context.Context, runID string, rec models.JobRecord) error {
	if p.results == nil {
		return nil
	}
	payload, err := models.NewRecordResult(runID, rec)
	if err != nil {
		return err
	}
	return p.results.WriteMessages(ctx, p.message(rec.ID, payload))
}

func (p *Publisher) publishEdges(ctx context.Context, runID string, rec models.JobRecord) error {
	if p.edges == nil {
		return nil
	}
	edges := models.EdgesForRecord(runID, rec)
	if len(edges) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(edges))
	for _, edge := range edges {
		payload, err := json.Marshal(edge)
		if err != nil {
			return err
		}
		msgs = append(msgs, p.message(rec.ID, payload))
	}
	return p.edges.WriteMessages(ctx, msgs...)
}

// PublishFailure writes one failed row to the dead-letter topic.
func (p *Publisher) PublishFailure(ctx context.Context, failure models.ExtractionFailure) error {
	if p.dlq == nil {
		return nil
	}
	payload, err := json.Marshal(failure)
	if err != nil {
		return err
	}
	return p.dlq.WriteMessages(ctx, p.message(failure.RunID, payload))
}

func (p *Publisher) message(key string, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  p.now().UTC(),
	}
}

// RecordExtracted is a no-op: records are published once the run has been
// deduplicated.
func (p *Publisher) RecordExtracted(context.Context, models.CrawlTarget, int, models.JobRecord) {}

// ExtractionFailed forwards the failure to the dead-letter topic.
func (p *Publisher) ExtractionFailed(ctx context.Context, failure models.ExtractionFailure) {
	if err := p.PublishFailure(ctx, failure); err != nil && !errors.Is(err, context.Canceled) {
		logger.FromContextOr(ctx, p.log).Warn("dlq publish failed",
			logger.String("run_id", failure.RunID),
			logger.Int("position", failure.Position),
			logger.Error(err),
		)
	}
}

// URLFinished logs the throughput of the finished URL.
func (p *Publisher) URLFinished(ctx context.Context, target models.CrawlTarget, report models.URLReport) {
	logger.FromContextOr(ctx, p.log).Debug("url finished",
		logger.String("url", target.URL),
		logger.Int("items_seen", report.ItemsSeen),
		logger.Float64("seconds_per_item", report.SecondsPerItem),
	)
}

// Close closes every configured writer.
func (p *Publisher) Close() error {
	var errs []error
	for _, w := range []MessageWriter{p.results, p.edges, p.dlq} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

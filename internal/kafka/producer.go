package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"karriere-harvester/internal/models"
)

// RequestProducer publishes CrawlRequest messages.
type RequestProducer interface {
	WriteRequest(ctx context.Context, req models.CrawlRequest) error
}

// Producer wraps a Kafka writer for publishing crawl requests.
type Producer struct {
	writer MessageWriter
}

// NewProducer creates a Kafka producer for the given broker and topic.
func NewProducer(broker, topic string) *Producer {
	return &Producer{writer: NewWriter(broker, topic)}
}

// NewProducerWithWriter builds a producer using a custom writer (tests).
func NewProducerWithWriter(writer MessageWriter) *Producer {
	return &Producer{writer: writer}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// WriteRequest publishes a CrawlRequest keyed by its run ID.
func (p *Producer) WriteRequest(ctx context.Context, req models.CrawlRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(req.RunID),
		Value: payload,
		Time:  time.Now().UTC(),
	}

	return p.writer.WriteMessages(ctx, msg)
}

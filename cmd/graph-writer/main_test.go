package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"karriere-harvester/internal/graph"
	"karriere-harvester/internal/logger"
	"karriere-harvester/mocks"
)

func newTestConsumer(t *testing.T, write func(context.Context, []byte) error) (*consumer, *mocks.MockMessageReader, *prometheus.Registry) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	reader := mocks.NewMockMessageReader(ctrl)
	reg := prometheus.NewRegistry()
	results, _ := newConsumerMetrics(reg)
	c := newConsumer("results", reader, write, results, logger.NewNop())
	c.backoff = time.Millisecond
	return c, reader, reg
}

func TestConsumerCommitsWrittenMessages(t *testing.T) {
	var payloads []string
	c, reader, _ := newTestConsumer(t, func(_ context.Context, payload []byte) error {
		payloads = append(payloads, string(payload))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Value: []byte(`{"run_id":"r1"}`)}
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		reader.EXPECT().CommitMessages(gomock.Any(), msg).DoAndReturn(
			func(context.Context, ...kafka.Message) error {
				cancel()
				return nil
			},
		),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, context.Canceled),
	)

	c.run(ctx)

	if len(payloads) != 1 || payloads[0] != `{"run_id":"r1"}` {
		t.Fatalf("unexpected payloads: %v", payloads)
	}
	if v := testutil.ToFloat64(c.metrics.received); v != 1 {
		t.Fatalf("expected 1 received, got %v", v)
	}
	if v := testutil.ToFloat64(c.metrics.written); v != 1 {
		t.Fatalf("expected 1 written, got %v", v)
	}
}

func TestConsumerSkipsCommitOnWriteError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, reader, _ := newTestConsumer(t, func(context.Context, []byte) error {
		cancel()
		return errors.New("neo4j unavailable")
	})

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Value: []byte("{}")}, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, context.Canceled),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Times(0)

	c.run(ctx)

	if v := testutil.ToFloat64(c.metrics.failed); v != 1 {
		t.Fatalf("expected 1 failure, got %v", v)
	}
}

func TestConsumerRetriesFetchErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, reader, _ := newTestConsumer(t, func(context.Context, []byte) error { return nil })

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker not available")),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)

	c.run(ctx)

	if v := testutil.ToFloat64(c.metrics.received); v != 0 {
		t.Fatalf("expected nothing received, got %v", v)
	}
}

func TestConsumerMetricsAreLabelledByStream(t *testing.T) {
	reg := prometheus.NewRegistry()
	results, edges := newConsumerMetrics(reg)
	results.received.Inc()
	edges.received.Add(2)
	edges.failed.Inc()

	// up gauge plus two streams in each of the three vectors
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 7 {
		t.Fatalf("expected 7 series, got %d (%v)", n, err)
	}
	if v := testutil.ToFloat64(edges.received); v != 2 {
		t.Fatalf("expected 2 edge messages, got %v", v)
	}
}

func TestConsumerWritesResultsThroughGraphWriter(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(session)
	session.EXPECT().Close(gomock.Any()).Return(nil)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any()).Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := mocks.NewMockMessageReader(ctrl)
	results, _ := newConsumerMetrics(prometheus.NewRegistry())
	c := newConsumer("results", reader, graph.NewWriter(driver, nil).WriteResult, results, logger.NewNop())

	msg := kafka.Message{Value: []byte(`{"run_id":"r1","record":{"id":"123"}}`)}
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		reader.EXPECT().CommitMessages(gomock.Any(), msg).DoAndReturn(
			func(context.Context, ...kafka.Message) error {
				cancel()
				return nil
			},
		),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, context.Canceled),
	)

	c.run(ctx)

	if v := testutil.ToFloat64(results.written); v != 1 {
		t.Fatalf("expected 1 written, got %v", v)
	}
}

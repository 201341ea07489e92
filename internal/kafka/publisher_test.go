package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/crawler"
	hkafka "karriere-harvester/internal/kafka"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/models"
	"karriere-harvester/mocks"
)

var _ crawler.Observer = (*hkafka.Publisher)(nil)

func TestPublisherPublishRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	results := mocks.NewMockMessageWriter(ctrl)
	edges := mocks.NewMockMessageWriter(ctrl)
	pub := hkafka.NewPublisher(results, edges, nil, logger.NewNop())

	rec := models.JobRecord{
		Name:           "Go Developer",
		ID:             "abc123",
		URL:            "https://www.karriere.at/jobs/abc123",
		Company:        "Acme",
		Location:       "Wien",
		EmploymentType: "Vollzeit, Teilzeit",
		Salary:         "N/A",
		Experience:     "N/A",
	}

	gomock.InOrder(
		results.EXPECT().
			WriteMessages(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs ...kgo.Message) error {
				if len(msgs) != 1 {
					t.Fatalf("expected 1 result message, got %d", len(msgs))
				}
				var got models.RecordResult
				if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
					t.Fatalf("failed to decode result: %v", err)
				}
				if got.RunID != "run-1" || got.Record != rec {
					t.Fatalf("unexpected result payload: %+v", got)
				}
				return nil
			}),
		edges.EXPECT().
			WriteMessages(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs ...kgo.Message) error {
				// company, location, two employment types
				if len(msgs) != 4 {
					t.Fatalf("expected 4 edge messages, got %d", len(msgs))
				}
				var last models.Edge
				if err := json.Unmarshal(msgs[3].Value, &last); err != nil {
					t.Fatalf("failed to decode edge: %v", err)
				}
				if last.To != "employment:Teilzeit" || last.Relation != models.RelationEmploymentType {
					t.Fatalf("unexpected edge: %+v", last)
				}
				return nil
			}),
	)

	require.NoError(t, pub.PublishRecords(context.Background(), "run-1", []models.JobRecord{rec}))
}

func TestPublisherPublishRecordsStopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	results := mocks.NewMockMessageWriter(ctrl)
	pub := hkafka.NewPublisher(results, nil, nil, nil)

	results.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(1)

	err := pub.PublishRecords(context.Background(), "run-1", []models.JobRecord{{ID: "1"}, {ID: "2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish record 1")
}

func TestPublisherExtractionFailedWritesDLQ(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	dlq := mocks.NewMockMessageWriter(ctrl)
	pub := hkafka.NewPublisher(nil, nil, dlq, logger.NewNop())

	failure := models.ExtractionFailure{RunID: "run-9", TargetURL: "https://example.test/jobs/go", Position: 4, Error: "no title"}
	dlq.EXPECT().
		WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kgo.Message) error {
			if string(msgs[0].Key) != "run-9" {
				t.Fatalf("unexpected dlq key: %s", string(msgs[0].Key))
			}
			var got models.ExtractionFailure
			if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
				t.Fatalf("failed to decode failure: %v", err)
			}
			if got.Position != 4 || got.Error != "no title" {
				t.Fatalf("unexpected failure payload: %+v", got)
			}
			return errors.New("dlq unavailable")
		})

	// write errors are logged, never propagated to the crawl
	pub.ExtractionFailed(context.Background(), failure)
}

func TestPublisherCloseJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	results := mocks.NewMockMessageWriter(ctrl)
	dlq := mocks.NewMockMessageWriter(ctrl)
	results.EXPECT().Close().Return(errors.New("results close"))
	dlq.EXPECT().Close().Return(nil)

	err := hkafka.NewPublisher(results, nil, dlq, nil).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results close")
}

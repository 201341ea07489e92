package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	kgo "github.com/segmentio/kafka-go"

	hkafka "karriere-harvester/internal/kafka"
	"karriere-harvester/internal/models"
	"karriere-harvester/mocks"
)

func TestProducerWriteRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	writer := mocks.NewMockMessageWriter(ctrl)
	prod := hkafka.NewProducerWithWriter(writer)

	req := models.CrawlRequest{
		RunID:     "run-123",
		Terms:     []string{"golang developer"},
		Locations: []string{"wien"},
		Limit:     50,
		UseProxy:  true,
		CreatedAt: time.Unix(0, 0).UTC(),
	}

	writer.EXPECT().
		WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kgo.Message) error {
			if len(msgs) != 1 {
				t.Fatalf("expected 1 message, got %d", len(msgs))
			}
			if string(msgs[0].Key) != req.RunID {
				t.Fatalf("unexpected message key: %s", string(msgs[0].Key))
			}

			var got models.CrawlRequest
			if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
				t.Fatalf("failed to decode message: %v", err)
			}
			if got.RunID != req.RunID || got.Limit != req.Limit || !got.UseProxy || len(got.Terms) != 1 || got.Locations[0] != "wien" {
				t.Fatalf("unexpected request payload: %+v", got)
			}
			return nil
		})

	if err := prod.WriteRequest(context.Background(), req); err != nil {
		t.Fatalf("WriteRequest returned error: %v", err)
	}
}

func TestProducerWriteRequestError(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	writer := mocks.NewMockMessageWriter(ctrl)
	prod := hkafka.NewProducerWithWriter(writer)

	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("write failed"))
	if err := prod.WriteRequest(context.Background(), models.CrawlRequest{RunID: "run-err"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestProducerClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	writer := mocks.NewMockMessageWriter(ctrl)
	writer.EXPECT().Close().Return(nil)
	if err := hkafka.NewProducerWithWriter(writer).Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"

	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/models"
	"karriere-harvester/mocks"
)

func newTestServer(t *testing.T) (*server, *mocks.MockRequestProducer, *mocks.MockStatusStore, *prometheus.Registry) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	prod := mocks.NewMockRequestProducer(ctrl)
	statusStore := mocks.NewMockStatusStore(ctrl)
	reg := prometheus.NewRegistry()

	srv := newServer(prod, statusStore, reg, logger.NewNop())
	srv.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	srv.newID = func() string { return "run-1" }
	return srv, prod, statusStore, reg
}

func TestHandleCrawl(t *testing.T) {
	srv, prod, statusStore, _ := newTestServer(t)

	prod.EXPECT().WriteRequest(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req models.CrawlRequest) error {
			if req.RunID != "run-1" || req.Limit != 25 || !req.UseProxy {
				t.Fatalf("unexpected request: %+v", req)
			}
			if len(req.Terms) != 2 || req.Terms[0] != "golang developer" || req.Terms[1] != "sre" {
				t.Fatalf("unexpected terms: %#v", req.Terms)
			}
			if len(req.Locations) != 1 || req.Locations[0] != "wien" {
				t.Fatalf("unexpected locations: %#v", req.Locations)
			}
			return nil
		})
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/crawl?terms=golang%20developer,sre&locations=wien&limit=25&proxy=true", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawl(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}

	var payload models.RunStatus
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.RunID != "run-1" {
		t.Fatalf("unexpected run id: %s", payload.RunID)
	}
	if payload.Status != models.RunQueued {
		t.Fatalf("unexpected status: %s", payload.Status)
	}
}

func TestHandleCrawlDefaultLimit(t *testing.T) {
	srv, prod, statusStore, _ := newTestServer(t)

	prod.EXPECT().WriteRequest(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req models.CrawlRequest) error {
			if req.Limit != maxLimit || req.UseProxy || len(req.Locations) != 0 {
				t.Fatalf("unexpected request: %+v", req)
			}
			return nil
		})
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/crawl?terms=sre", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawl(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
}

func TestHandleCrawlBadRequests(t *testing.T) {
	for _, target := range []string{
		"/crawl",
		"/crawl?terms=%20,%20",
		"/crawl?terms=sre&limit=abc",
		"/crawl?terms=sre&limit=-1",
		"/crawl?terms=sre&limit=100000",
	} {
		srv, prod, _, _ := newTestServer(t)
		prod.EXPECT().WriteRequest(gomock.Any(), gomock.Any()).Times(0)

		req := httptest.NewRequest(http.MethodPost, target, nil)
		rec := httptest.NewRecorder()
		srv.handleCrawl(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestHandleCrawlMethodNotAllowed(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/crawl?terms=sre", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawl(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestHandleCrawlEnqueueFailure(t *testing.T) {
	srv, prod, statusStore, _ := newTestServer(t)
	prod.EXPECT().WriteRequest(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).Times(0)

	req := httptest.NewRequest(http.MethodPost, "/crawl?terms=sre", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawl(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestHandleCrawlStatusStoreFailure(t *testing.T) {
	srv, prod, statusStore, _ := newTestServer(t)
	prod.EXPECT().WriteRequest(gomock.Any(), gomock.Any()).Return(nil)
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	req := httptest.NewRequest(http.MethodPost, "/crawl?terms=sre", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawl(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestHandleCrawlStatus(t *testing.T) {
	srv, _, statusStore, _ := newTestServer(t)
	statusStore.EXPECT().GetStatus(gomock.Any(), "run-7").Return(models.RunStatus{
		RunID:   "run-7",
		Status:  models.RunCompleted,
		Records: 12,
	}, true, nil)

	req := httptest.NewRequest(http.MethodGet, "/crawl/run-7", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawlStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var payload models.RunStatus
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Records != 12 || payload.Status != models.RunCompleted {
		t.Fatalf("unexpected status payload: %+v", payload)
	}
}

func TestHandleCrawlStatusNotFound(t *testing.T) {
	srv, _, statusStore, _ := newTestServer(t)
	statusStore.EXPECT().GetStatus(gomock.Any(), "missing").Return(models.RunStatus{}, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/crawl/missing", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawlStatus(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleCrawlStatusMissingID(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/crawl/", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawlStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleCrawlStatusStoreError(t *testing.T) {
	srv, _, statusStore, _ := newTestServer(t)
	statusStore.EXPECT().GetStatus(gomock.Any(), "run-1").Return(models.RunStatus{}, false, errors.New("redis down"))

	req := httptest.NewRequest(http.MethodGet, "/crawl/run-1", nil)
	rec := httptest.NewRecorder()
	srv.handleCrawlStatus(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, prod, statusStore, reg := newTestServer(t)
	prod.EXPECT().WriteRequest(gomock.Any(), gomock.Any()).Return(nil)
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).Return(nil)

	handler := srv.routes(reg)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/crawl?terms=sre", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	for _, line := range []string{
		"karriere_api_up 1",
		"karriere_api_crawl_requests_accepted_total 1",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected metrics to contain %q", line)
		}
	}
}

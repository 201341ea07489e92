package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"karriere-harvester/common"
	"karriere-harvester/internal/config"
	"karriere-harvester/internal/crawler"
	"karriere-harvester/internal/kafka"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/metrics"
	"karriere-harvester/internal/models"
	"karriere-harvester/internal/store"
)

const maxLimit = crawler.DefaultLimit

type apiMetrics struct {
	accepted prometheus.Counter
	rejected *prometheus.CounterVec
	lookups  *prometheus.CounterVec
}

func newAPIMetrics(reg prometheus.Registerer) *apiMetrics {
	factory := promauto.With(reg)
	factory.NewGauge(prometheus.GaugeOpts{Name: "karriere_api_up", Help: "API process is running"}).Set(1)
	return &apiMetrics{
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "karriere_api_crawl_requests_accepted_total",
			Help: "Crawl requests enqueued",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karriere_api_crawl_requests_rejected_total",
			Help: "Crawl requests refused, by reason",
		}, []string{"reason"}),
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karriere_api_status_lookups_total",
			Help: "Run status lookups, by result",
		}, []string{"result"}),
	}
}

type server struct {
	prod    kafka.RequestProducer
	store   store.StatusStore
	metrics *apiMetrics
	log     logger.Logger
	now     func() time.Time
	newID   func() string
}

func newServer(prod kafka.RequestProducer, store store.StatusStore, reg prometheus.Registerer, log logger.Logger) *server {
	return &server{
		prod:    prod,
		store:   store,
		metrics: newAPIMetrics(reg),
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func main() {
	cfg, err := config.Load(common.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	topic := cfg.Kafka.RequestsTopic
	addr := cfg.API.Addr

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	prod := kafka.NewProducer(cfg.Kafka.Broker, topic)
	defer func() {
		if err := prod.Close(); err != nil {
			log.Warn("failed to close producer", logger.Error(err))
		}
	}()

	statusStore := store.NewRedisStatusStore(cfg.Redis.Addr, store.StatusKeyPrefix, cfg.Redis.StatusTTL)
	defer func() {
		if err := statusStore.Close(); err != nil {
			log.Warn("failed to close status store", logger.Error(err))
		}
	}()

	reg := metrics.NewRegistry()
	srv := newServer(prod, statusStore, reg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("api shutdown error", logger.Error(err))
		}
	}()

	log.Info("api listening", logger.String("addr", addr), logger.String("topic", topic))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("api server error", logger.Error(err))
	}
}

func (s *server) routes(reg prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/crawl", s.handleCrawl)
	mux.HandleFunc("/crawl/", s.handleCrawlStatus)
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}

// handleCrawl accepts POST requests to enqueue a harvest run.
//
// Method: POST
// Path:   /crawl?terms=...&locations=...&limit=...&proxy=...
// Example:
//
//	curl -X POST "http://localhost:8080/crawl?terms=golang%20developer&locations=wien&limit=100"
func (s *server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	terms := common.SplitList(q.Get("terms"))
	if len(terms) == 0 {
		s.metrics.rejected.WithLabelValues("missing_terms").Inc()
		http.Error(w, "missing terms", http.StatusBadRequest)
		return
	}
	limit := maxLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit = common.ParseInt(raw, -1)
		if limit < 0 || limit > maxLimit {
			s.metrics.rejected.WithLabelValues("bad_limit").Inc()
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	createdAt := s.now().UTC()
	req := models.CrawlRequest{
		RunID:     s.newID(),
		Terms:     terms,
		Locations: common.SplitList(q.Get("locations")),
		Limit:     limit,
		UseProxy:  common.ParseBool(q.Get("proxy"), false),
		CreatedAt: createdAt,
	}
	status := models.RunStatus{
		RunID:     req.RunID,
		Terms:     req.Terms,
		Locations: req.Locations,
		Status:    models.RunQueued,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.prod.WriteRequest(ctx, req); err != nil {
		s.metrics.rejected.WithLabelValues("enqueue").Inc()
		s.log.Error("failed to enqueue crawl request", logger.String("run_id", req.RunID), logger.Error(err))
		http.Error(w, "failed to enqueue request", http.StatusBadGateway)
		return
	}

	if err := s.store.SetStatus(ctx, status); err != nil {
		s.metrics.rejected.WithLabelValues("status").Inc()
		s.log.Error("failed to persist status", logger.String("run_id", req.RunID), logger.Error(err))
		http.Error(w, "failed to persist status", http.StatusBadGateway)
		return
	}

	s.metrics.accepted.Inc()
	s.log.Info("crawl request queued",
		logger.String("run_id", req.RunID),
		logger.Strings("terms", req.Terms),
		logger.Strings("locations", req.Locations),
		logger.Int("limit", req.Limit),
	)
	writeJSON(w, status, http.StatusAccepted)
}

// handleCrawlStatus returns the status of a previously queued run.
//
// Method: GET
// Path:   /crawl/{runID}
func (s *server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/crawl/"), "/")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	status, ok, err := s.store.GetStatus(r.Context(), runID)
	if err != nil {
		s.metrics.lookups.WithLabelValues("error").Inc()
		http.Error(w, "failed to load status", http.StatusBadGateway)
		return
	}
	if !ok {
		s.metrics.lookups.WithLabelValues("not_found").Inc()
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	s.metrics.lookups.WithLabelValues("found").Inc()
	writeJSON(w, status, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"karriere-harvester/common"
	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/config"
	"karriere-harvester/internal/crawler"
	hkafka "karriere-harvester/internal/kafka"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/metrics"
	"karriere-harvester/internal/models"
	"karriere-harvester/internal/session"
	"karriere-harvester/internal/store"
)

// harvester runs one crawl request. *crawler.Harvester satisfies it.
type harvester interface {
	Fetch(ctx context.Context, terms, locations []string, fo crawler.FetchOptions) (crawler.Result, error)
}

// recordPublisher writes the records of a finished run.
type recordPublisher interface {
	PublishRecords(ctx context.Context, runID string, records []models.JobRecord) error
}

// archiver keeps records beyond the run. Optional.
type archiver interface {
	Save(ctx context.Context, runID string, records []models.JobRecord) (int, error)
}

type worker struct {
	reader     hkafka.MessageReader
	dedupe     store.Deduper
	status     store.StatusStore
	harvest    harvester
	publisher  recordPublisher
	archive    archiver
	proxy      func() string
	metrics    *workerMetrics
	jobTimeout time.Duration
	log        logger.Logger
}

func newWorker(
	reader hkafka.MessageReader,
	dedupe store.Deduper,
	status store.StatusStore,
	harvest harvester,
	publisher recordPublisher,
	archive archiver,
	reg prometheus.Registerer,
	jobTimeout time.Duration,
	log logger.Logger,
) *worker {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &worker{
		reader:     reader,
		dedupe:     dedupe,
		status:     status,
		harvest:    harvest,
		publisher:  publisher,
		archive:    archive,
		proxy:      func() string { return "" },
		metrics:    newWorkerMetrics(reg),
		jobTimeout: jobTimeout,
		log:        log,
	}
}

func main() {
	cfg, err := config.Load(common.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	broker := cfg.Kafka.Broker
	sqlitePath := cfg.SQLite.Path
	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   cfg.Kafka.RequestsTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed to close reader", logger.Error(err))
		}
	}()

	dedupe := store.NewRedisDeduper(cfg.Redis.Addr, store.DedupeKeyPrefix, cfg.Redis.DedupeTTL)
	defer func() {
		if err := dedupe.Close(); err != nil {
			log.Warn("failed to close dedupe store", logger.Error(err))
		}
	}()
	statusStore := store.NewRedisStatusStore(cfg.Redis.Addr, store.StatusKeyPrefix, cfg.Redis.StatusTTL)
	defer func() {
		if err := statusStore.Close(); err != nil {
			log.Warn("failed to close status store", logger.Error(err))
		}
	}()

	publisher := hkafka.NewPublisher(
		hkafka.NewWriter(broker, cfg.Kafka.ResultsTopic),
		hkafka.NewWriter(broker, cfg.Kafka.EdgesTopic),
		hkafka.NewWriter(broker, cfg.Kafka.DLQTopic),
		log,
	)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("failed to close publisher", logger.Error(err))
		}
	}()

	var archive archiver
	if sqlitePath != "" {
		a, err := store.OpenSQLiteArchive(ctx, sqlitePath)
		if err != nil {
			log.Error("sqlite archive unavailable", logger.String("path", sqlitePath), logger.Error(err))
			return
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn("failed to close archive", logger.Error(err))
			}
		}()
		archive = a
	}

	opts, err := cfg.HarvesterOptions()
	if err != nil {
		log.Error("invalid harvester options", logger.Error(err))
		return
	}
	client := cfg.HTTPClient()
	if cfg.Crawl.RespectRobots {
		rules, err := karriere.LoadRobots(ctx, client, opts.BaseURL)
		if err != nil {
			log.Warn("robots.txt fetch failed, allowing all paths", logger.Error(err))
		} else {
			opts.Robots = rules
			log.Info("loaded robots.txt")
		}
	}

	reg := metrics.NewRegistry()
	sessions := session.NewManager(browser.NewChromeLauncher(cfg.Browser.ExecPath), cfg.BrowserOptions(), cfg.ProxySource(client), log)
	w := newWorker(reader, dedupe, statusStore, nil, publisher, archive, reg, cfg.Worker.JobTimeout, log)
	w.proxy = sessions.LastProxy
	w.harvest = crawler.NewHarvester(sessions, opts,
		crawler.WithObserver(crawler.Observers{publisher, w.metrics.observer()}),
		crawler.WithPacer(cfg.Pacer()),
		crawler.WithLogger(log),
	)

	if cfg.Worker.MetricsAddr != "" {
		metrics.StartServer(ctx, cfg.Worker.MetricsAddr, reg, log)
	}

	log.Info("worker consuming",
		logger.String("topic", cfg.Kafka.RequestsTopic),
		logger.String("group", cfg.Kafka.GroupID),
		logger.String("broker", broker),
	)
	w.run(ctx)
}

// run consumes crawl requests one at a time until ctx is done.
func (w *worker) run(ctx context.Context) {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("fetch error", logger.Error(err))
			if !sleepCtx(ctx, 500*time.Millisecond) {
				return
			}
			continue
		}

		if err := w.processMessage(ctx, msg); err != nil {
			w.log.Error("message processing error", logger.Error(err))
			continue
		}
		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			w.metrics.commitErrors.Inc()
			w.log.Warn("commit error",
				logger.Int("partition", msg.Partition),
				logger.Int64("offset", msg.Offset),
				logger.Error(err),
			)
		}
	}
}

// processMessage handles one request. A returned error leaves the message
// uncommitted; every handled outcome, failed runs included, returns nil.
func (w *worker) processMessage(ctx context.Context, msg kafka.Message) error {
	var req models.CrawlRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil || req.RunID == "" {
		w.log.Warn("invalid crawl request payload", logger.Int64("offset", msg.Offset))
		return nil
	}
	w.metrics.runsReceived.Inc()
	log := w.log.With(logger.String("run_id", req.RunID))

	claimed, err := w.dedupe.Claim(ctx, req.RunID)
	if err != nil {
		return fmt.Errorf("claim %s: %w", req.RunID, err)
	}
	if !claimed {
		w.metrics.runsSkipped.Inc()
		log.Info("duplicate crawl request skipped")
		return nil
	}

	base := models.RunStatus{
		RunID:     req.RunID,
		Terms:     req.Terms,
		Locations: req.Locations,
		CreatedAt: req.CreatedAt,
	}
	if _, err := store.Transition(ctx, w.status, base, func(s *models.RunStatus) {
		s.Status = models.RunRunning
	}); err != nil {
		log.Warn("failed to mark run running", logger.Error(err))
	}

	w.metrics.runsInFlight.Inc()
	defer w.metrics.runsInFlight.Dec()

	started := time.Now()
	res, runErr := w.harvestRun(ctx, req)
	w.metrics.runDuration.Observe(time.Since(started).Seconds())
	if proxy := w.proxy(); proxy != "" {
		w.metrics.setProxy(proxy)
	}

	if runErr == nil {
		runErr = w.publish(ctx, req.RunID, res.Records, log)
	}

	final, err := store.Transition(ctx, w.status, base, func(s *models.RunStatus) {
		s.Records = len(res.Records)
		s.Failures = res.Failures
		switch {
		case runErr != nil:
			s.Status = models.RunFailed
			s.Error = runErr.Error()
		case len(res.Records) == 0:
			s.Status = models.RunEmpty
		default:
			s.Status = models.RunCompleted
		}
	})
	if err != nil {
		log.Warn("failed to persist final status", logger.Error(err))
	}

	switch {
	case runErr != nil:
		w.metrics.runsFailed.Inc()
		log.Error("run failed", logger.Error(runErr))
	case len(res.Records) == 0:
		w.metrics.runsEmpty.Inc()
		log.Info("run finished without records")
	default:
		w.metrics.runsSucceeded.Inc()
		log.Info("run completed",
			logger.Int("records", final.Records),
			logger.Int("failures", final.Failures),
		)
	}
	return nil
}

func (w *worker) harvestRun(ctx context.Context, req models.CrawlRequest) (crawler.Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	limit := req.Limit
	if limit <= 0 {
		limit = crawler.DefaultLimit
	}
	log := w.log.With(logger.String("run_id", req.RunID))
	log.Info("run started",
		logger.Strings("terms", req.Terms),
		logger.Strings("locations", req.Locations),
		logger.Int("limit", limit),
		logger.Bool("proxy", req.UseProxy),
	)
	return w.harvest.Fetch(runCtx, req.Terms, req.Locations, crawler.FetchOptions{
		Limit:    limit,
		UseProxy: req.UseProxy,
		RunID:    req.RunID,
	})
}

func (w *worker) publish(ctx context.Context, runID string, records []models.JobRecord, log logger.Logger) error {
	if len(records) == 0 {
		return nil
	}
	if err := w.publisher.PublishRecords(ctx, runID, records); err != nil {
		return err
	}
	w.metrics.recordsPublished.Add(float64(len(records)))
	if w.archive == nil {
		return nil
	}
	added, err := w.archive.Save(ctx, runID, records)
	if err != nil {
		log.Warn("archive write failed", logger.Error(err))
		return nil
	}
	log.Debug("archived records", logger.Int("new", added))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

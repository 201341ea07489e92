package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"karriere-harvester/internal/access"
	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/models"
	"karriere-harvester/internal/session"
	"karriere-harvester/internal/store"
)

// DefaultLimit caps a run when the caller does not.
const DefaultLimit = 9999

// Exporter writes the records of a finished run and returns the file path.
type Exporter interface {
	Export(records []models.JobRecord, terms, locations []string, at time.Time) (string, error)
}

// Options configure a Harvester.
type Options struct {
	BaseURL   string
	Selectors karriere.Selectors

	WaitTimeout   time.Duration
	PollInterval  time.Duration
	Retry         access.RetryPolicy
	ConsentWait   time.Duration
	ConsentSettle time.Duration
	LoadMoreWait  time.Duration
	OverlayWait   time.Duration
	SnapshotDir   string

	// Robots, when set, drops targets the rules disallow.
	Robots *karriere.RobotsRules
}

// DefaultOptions returns the settings of the live site.
func DefaultOptions() Options {
	return Options{
		BaseURL:       karriere.BaseURL,
		Selectors:     karriere.DefaultSelectors(),
		WaitTimeout:   access.DefaultTimeout,
		PollInterval:  access.DefaultPollInterval,
		Retry:         access.DefaultRetryPolicy(),
		ConsentWait:   access.DefaultTimeout,
		ConsentSettle: 2 * time.Second,
		LoadMoreWait:  5 * time.Second,
		OverlayWait:   access.DefaultTimeout,
	}
}

// FetchOptions are the per-call knobs of FetchJobs.
type FetchOptions struct {
	Limit      int
	AutoExport bool
	UseProxy   bool
	RunID      string
}

// DefaultFetchOptions returns limit 9999 with auto export.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{Limit: DefaultLimit, AutoExport: true}
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Records    []models.JobRecord
	Reports    []models.URLReport
	Failures   int
	Duplicates int
	ExportPath string
}

// Harvester runs whole crawls: one session, one bootstrap and one paginated
// crawl per (term, location) target. It is not safe for concurrent use.
type Harvester struct {
	sessions *session.Manager
	opts     Options
	exporter Exporter
	observer Observer
	pacer    Pacer
	tracker  *Tracker
	store    *store.Accumulator
	log      logger.Logger
}

// Option customizes a Harvester.
type Option func(*Harvester)

// WithExporter sets the exporter used by auto export.
func WithExporter(e Exporter) Option {
	return func(h *Harvester) { h.exporter = e }
}

// WithObserver receives per-row events.
func WithObserver(o Observer) Option {
	return func(h *Harvester) { h.observer = o }
}

// WithPacer paces navigations and load-more clicks.
func WithPacer(p Pacer) Option {
	return func(h *Harvester) { h.pacer = p }
}

// WithTracker shares a tracker, e.g. with a metrics endpoint.
func WithTracker(t *Tracker) Option {
	return func(h *Harvester) { h.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(h *Harvester) { h.log = log }
}

// NewHarvester returns a harvester using sessions from m.
func NewHarvester(m *session.Manager, opts Options, options ...Option) *Harvester {
	h := &Harvester{
		sessions: m,
		opts:     opts,
		observer: NopObserver{},
		tracker:  NewTracker(),
		store:    store.NewAccumulator(),
		log:      logger.NewNop(),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Tracker returns the throughput tracker.
func (h *Harvester) Tracker() *Tracker {
	return h.tracker
}

// FetchJobs crawls every (term, location) pair and returns the deduplicated
// records. With autoExport and at least one record the records are written
// through the exporter.
func (h *Harvester) FetchJobs(ctx context.Context, terms, locations []string, limit int, autoExport bool) ([]models.JobRecord, error) {
	res, err := h.Fetch(ctx, terms, locations, FetchOptions{Limit: limit, AutoExport: autoExport})
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Fetch is FetchJobs with the full set of options and result details.
func (h *Harvester) Fetch(ctx context.Context, terms, locations []string, fo FetchOptions) (Result, error) {
	runID := fo.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := h.log.With(logger.String("run_id", runID))
	ctx = logger.WithContext(ctx, log)
	res := Result{RunID: runID}

	h.store.Reset()
	targets := h.targets(terms, locations, log)

	err := h.sessions.Run(ctx, fo.UseProxy, func(ctx context.Context, engine browser.Engine) error {
		return h.crawl(ctx, engine, targets, fo.Limit, runID, &res, log)
	})
	if err != nil {
		return res, fmt.Errorf("harvest %s: %w", runID, err)
	}
	log.Info("Finished parsing")

	res.Duplicates = h.store.Dedup()
	res.Records = h.store.Records()
	if len(res.Records) == 0 {
		log.Info("No jobs were found")
		return res, nil
	}
	log.Info("Jobs found", logger.Int("records", len(res.Records)), logger.Int("duplicates", res.Duplicates))

	if fo.AutoExport && h.exporter != nil {
		path, err := h.exporter.Export(res.Records, terms, locations, time.Now())
		if err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
		res.ExportPath = path
		log.Info("Exported records", logger.String("path", path))
	}
	return res, nil
}

func (h *Harvester) crawl(ctx context.Context, engine browser.Engine, targets []models.CrawlTarget, limit int, runID string, res *Result, log logger.Logger) error {
	layer := access.New(engine,
		access.WithTimeout(h.opts.WaitTimeout),
		access.WithPollInterval(h.opts.PollInterval),
		access.WithRetryPolicy(h.opts.Retry),
		access.WithLogger(log),
	)
	bootLayer := layer
	if h.opts.ConsentWait > 0 {
		bootLayer = layer.WithWait(h.opts.ConsentWait)
	}
	root := strings.TrimRight(h.opts.BaseURL, "/")
	if err := Bootstrap(ctx, bootLayer, h.opts.Selectors, root, h.opts.ConsentSettle, log); err != nil {
		return err
	}

	extractor := NewExtractor(layer, h.opts.Selectors, h.opts.BaseURL)
	paginator := NewPaginator(layer, h.opts.Selectors, extractor, h.store, h.tracker, h.observer, h.pacer, PaginatorConfig{
		LoadMoreWait: h.opts.LoadMoreWait,
		OverlayWait:  h.opts.OverlayWait,
		SnapshotDir:  h.opts.SnapshotDir,
		RunID:        runID,
	}, log)

	h.tracker.Start()
	for _, target := range targets {
		if h.store.Len() >= limit {
			log.Info("Record limit reached", logger.Int("limit", limit))
			break
		}
		log.Info("Start scraping", logger.String("url", target.URL))
		h.tracker.BeginURL()
		state, err := paginator.CrawlURL(ctx, target, limit)
		res.Failures += state.Failures
		if err != nil {
			return err
		}
		report := h.tracker.EndURL(target.URL, state.ItemsSeen)
		res.Reports = append(res.Reports, report)
		h.observer.URLFinished(ctx, target, report)
		log.Info("Finished url",
			logger.String("url", target.URL),
			logger.Int("items_seen", state.ItemsSeen),
			logger.Duration("elapsed", report.Elapsed),
			logger.Duration("total_elapsed", report.TotalElapsed),
			logger.Float64("sec_per_item", report.SecondsPerItem),
			logger.Float64("sec_per_item_total", report.SecondsPerItemRun),
		)
	}
	return nil
}

func (h *Harvester) targets(terms, locations []string, log logger.Logger) []models.CrawlTarget {
	all := karriere.BuildTargets(h.opts.BaseURL, terms, locations)
	if h.opts.Robots == nil {
		return all
	}
	kept := all[:0]
	for _, t := range all {
		if h.opts.Robots.AllowedURL(t.URL) {
			kept = append(kept, t)
			continue
		}
		log.Warn("Skipping target disallowed by robots.txt", logger.String("url", t.URL))
	}
	return kept
}

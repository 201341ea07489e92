package crawler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"karriere-harvester/internal/access"
	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/models"
	"karriere-harvester/internal/store"
)

// PaginatorConfig tunes the per-URL crawl.
type PaginatorConfig struct {
	// LoadMoreWait bounds the search for the load-more control and the wait
	// for new rows after clicking it.
	LoadMoreWait time.Duration
	// OverlayWait bounds the search for the disruptive overlay.
	OverlayWait time.Duration
	// SnapshotDir receives crash screenshots; empty means the working dir.
	SnapshotDir string
	RunID       string
}

// Paginator drives one listing URL: it reads the declared total, extracts
// every visible row past the cursor and reveals more rows until the source,
// the declared total or the record limit is exhausted.
type Paginator struct {
	layer     *access.Layer
	sel       karriere.Selectors
	extractor *Extractor
	store     *store.Accumulator
	tracker   *Tracker
	observer  Observer
	pacer     Pacer
	cfg       PaginatorConfig
	log       logger.Logger
}

// NewPaginator wires a paginator. observer, pacer and tracker may be nil.
func NewPaginator(layer *access.Layer, sel karriere.Selectors, extractor *Extractor, acc *store.Accumulator,
	tracker *Tracker, observer Observer, pacer Pacer, cfg PaginatorConfig, log logger.Logger) *Paginator {
	if observer == nil {
		observer = NopObserver{}
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.LoadMoreWait <= 0 {
		cfg.LoadMoreWait = 5 * time.Second
	}
	if cfg.OverlayWait <= 0 {
		cfg.OverlayWait = layer.Timeout()
	}
	return &Paginator{
		layer:     layer,
		sel:       sel,
		extractor: extractor,
		store:     acc,
		tracker:   tracker,
		observer:  observer,
		pacer:     pacer,
		cfg:       cfg,
		log:       log,
	}
}

// CrawlURL crawls one target. The limit is only checked between cycles, so
// one batch of visible rows may push the store past it. Only navigation
// failures and cancellation are returned as errors.
func (p *Paginator) CrawlURL(ctx context.Context, target models.CrawlTarget, limit int) (models.CrawlState, error) {
	log := p.log.With(logger.String("url", target.URL))
	if err := pace(ctx, p.pacer); err != nil {
		return models.CrawlState{}, err
	}
	if err := p.layer.Engine().Navigate(ctx, target.URL); err != nil {
		return models.CrawlState{}, fmt.Errorf("navigate to %s: %w", target.URL, err)
	}

	if _, ok := p.layer.FindOne(ctx, p.sel.ResultsContainer, nil, access.Wait); !ok {
		log.Warn("Results container did not appear")
	}
	header := p.layer.ReadText(ctx, p.sel.ListHeader, nil, access.Wait, "")
	p.removeOverlay(ctx, log)

	state := models.CrawlState{
		DeclaredTotal: karriere.ParseDeclaredTotal(header),
		MoreAvailable: true,
		BaseOffset:    p.store.End(),
	}
	log.Info("Expecting jobs", logger.Int("declared_total", state.DeclaredTotal))

	for state.MoreAvailable && p.store.Len() < limit && state.ItemsSeen < state.DeclaredTotal {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		items := p.visibleItems(ctx, access.Wait)
		for i := state.ItemsSeen; i < len(items); i++ {
			if err := p.consume(ctx, target, items[i], &state, log); err != nil {
				return state, err
			}
		}
		state.MoreAvailable = p.revealMore(ctx, state.ItemsSeen, log)
	}
	return state, ctx.Err()
}

func (p *Paginator) consume(ctx context.Context, target models.CrawlTarget, item browser.Element, state *models.CrawlState, log logger.Logger) error {
	pos := state.Position()
	rec, err := p.extractor.Extract(ctx, item)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.fail(ctx, target, pos, state, err, log)
	} else {
		p.store.Put(pos, rec)
		p.tracker.RecordSuccess()
		p.observer.RecordExtracted(ctx, target, pos, rec)
	}
	state.ItemsSeen++
	return nil
}

func (p *Paginator) fail(ctx context.Context, target models.CrawlTarget, pos int, state *models.CrawlState, cause error, log logger.Logger) {
	state.Failures++
	p.tracker.RecordFailure()

	shot := filepath.Join(p.cfg.SnapshotDir, fmt.Sprintf("crash_on_%d.png", state.ItemsSeen))
	if err := p.layer.Engine().Screenshot(ctx, shot); err != nil {
		log.Warn("Failed to capture crash screenshot", logger.Error(err))
		shot = ""
	}
	log.Warn("Failed to extract job",
		logger.Int("cursor", state.ItemsSeen),
		logger.Int("position", pos),
		logger.Error(cause),
	)
	p.observer.ExtractionFailed(ctx, models.ExtractionFailure{
		RunID:     p.cfg.RunID,
		TargetURL: target.URL,
		Position:  pos,
		Error:     cause.Error(),
		Snapshot:  shot,
		FailedAt:  time.Now().UTC(),
	})
}

// revealMore clicks load-more and waits for the row count to pass cursor.
func (p *Paginator) revealMore(ctx context.Context, cursor int, log logger.Logger) bool {
	wait := p.layer.WithWait(p.cfg.LoadMoreWait)
	button, ok := wait.FindOne(ctx, p.sel.LoadMore, nil, access.Wait)
	if !ok {
		log.Debug("No more jobs to load", logger.Int("cursor", cursor))
		return false
	}
	if err := pace(ctx, p.pacer); err != nil {
		return false
	}
	if err := p.layer.Engine().Click(ctx, button); err != nil {
		log.Warn("Failed to click load more", logger.Error(err))
		return false
	}
	revealed := wait.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		return len(p.visibleItems(ctx, access.Immediate)) > cursor, nil
	})
	if !revealed {
		log.Debug("Load more revealed nothing", logger.Int("cursor", cursor))
	}
	return revealed
}

// visibleItems returns the rows inside the results container, or the rows
// of the whole page when the container cannot be resolved.
func (p *Paginator) visibleItems(ctx context.Context, mode access.Mode) []browser.Element {
	container, ok := p.layer.FindOne(ctx, p.sel.ResultsContainer, nil, mode)
	if !ok {
		container = nil
	}
	if mode == access.Immediate {
		els, err := p.layer.Engine().Query(ctx, p.sel.JobItem, container)
		if err != nil {
			return nil
		}
		return els
	}
	return p.layer.FindAll(ctx, p.sel.JobItem, container)
}

func (p *Paginator) removeOverlay(ctx context.Context, log logger.Logger) {
	overlay, ok := p.layer.WithWait(p.cfg.OverlayWait).FindOne(ctx, p.sel.Overlay, nil, access.Wait)
	if !ok {
		log.Debug("Overlay not shown")
		return
	}
	if err := p.layer.Engine().Remove(ctx, overlay); err != nil {
		log.Warn("Failed to remove overlay", logger.Error(err))
	}
}

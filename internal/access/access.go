// Package access wraps a browser.Engine with lookups that tolerate a surface
// still rendering or re-rendering: bounded waits, stale-handle retries and
// text reads that degrade to defaults instead of failing.
package access

import (
	"context"
	"errors"
	"time"

	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/logger"
)

// Mode selects whether a lookup waits for the element to appear.
type Mode int

const (
	// Wait polls up to the layer timeout.
	Wait Mode = iota
	// Immediate queries once.
	Immediate
)

func (m Mode) String() string {
	if m == Immediate {
		return "immediate"
	}
	return "wait"
}

const (
	// DefaultText stands in for values the surface does not show.
	DefaultText = "N/A"
	// ExceptionMarker replaces text whose read failed unexpectedly.
	ExceptionMarker = "EXCEPTION"

	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

var errAbsent = errors.New("access: element absent")

// Layer performs resilient lookups against one engine.
type Layer struct {
	engine   browser.Engine
	timeout  time.Duration
	interval time.Duration
	retry    RetryPolicy
	log      logger.Logger
}

// Option configures a Layer.
type Option func(*Layer)

// WithTimeout bounds every Wait-mode lookup.
func WithTimeout(d time.Duration) Option {
	return func(l *Layer) { l.timeout = d }
}

// WithPollInterval sets the pause between polls.
func WithPollInterval(d time.Duration) Option {
	return func(l *Layer) { l.interval = d }
}

// WithRetryPolicy replaces the staleness retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(l *Layer) { l.retry = p }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// New returns a layer over engine.
func New(engine browser.Engine, opts ...Option) *Layer {
	l := &Layer{
		engine:   engine,
		timeout:  DefaultTimeout,
		interval: DefaultPollInterval,
		retry:    DefaultRetryPolicy(),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Engine returns the underlying engine.
func (l *Layer) Engine() browser.Engine {
	return l.engine
}

// Timeout returns the wait bound.
func (l *Layer) Timeout() time.Duration {
	return l.timeout
}

// WithWait returns a copy of l whose waits are bounded by d.
func (l *Layer) WithWait(d time.Duration) *Layer {
	cp := *l
	cp.timeout = d
	return &cp
}

// FindOne returns the first element matching loc. Absence, a timeout,
// staleness beyond the retry budget and failed lookups all report false.
func (l *Layer) FindOne(ctx context.Context, loc browser.Locator, scope browser.Element, mode Mode) (browser.Element, bool) {
	el, ok, err := l.findOne(ctx, loc, scope, mode)
	if err != nil {
		l.logLookupError(loc, err)
	}
	return el, ok
}

// findOne is FindOne that also returns the failure of the last lookup when
// it was neither staleness nor absence.
func (l *Layer) findOne(ctx context.Context, loc browser.Locator, scope browser.Element, mode Mode) (browser.Element, bool, error) {
	var found browser.Element
	var lastErr error
	check := func(ctx context.Context) (bool, error) {
		els, err := l.query(ctx, loc, scope)
		if !isContextErr(err) {
			lastErr = err
		}
		if err != nil {
			return false, err
		}
		if len(els) == 0 {
			return false, nil
		}
		found = els[0]
		return true, nil
	}
	var ok bool
	if mode == Immediate {
		ok, _ = check(ctx)
	} else {
		ok = l.poll(ctx, loc, true, check)
	}
	if ok {
		return found, true, nil
	}
	if lastErr != nil && !browser.IsAbsent(lastErr) && !isContextErr(lastErr) && ctx.Err() == nil {
		return nil, false, lastErr
	}
	return nil, false, nil
}

// FindAll waits for at least one match and returns the matches at that
// instant. It returns an empty slice when nothing appears in time.
func (l *Layer) FindAll(ctx context.Context, loc browser.Locator, scope browser.Element) []browser.Element {
	var found []browser.Element
	ok := l.poll(ctx, loc, true, func(ctx context.Context) (bool, error) {
		els, err := l.query(ctx, loc, scope)
		if err != nil {
			return false, err
		}
		found = els
		return len(els) > 0, nil
	})
	if !ok {
		return []browser.Element{}
	}
	return found
}

// Count returns the number of elements matching loc right now.
func (l *Layer) Count(ctx context.Context, loc browser.Locator, scope browser.Element) (int, error) {
	els, err := l.query(ctx, loc, scope)
	return len(els), err
}

// ReadText locates loc and returns its trimmed text. Every attempt resolves
// the element again; a missing element yields def and any failure other than
// staleness, in the lookup or the text read, yields ExceptionMarker.
func (l *Layer) ReadText(ctx context.Context, loc browser.Locator, scope browser.Element, mode Mode, def string) string {
	var text string
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		el, ok, err := l.findOne(ctx, loc, scope, mode)
		if err != nil {
			return err
		}
		if !ok {
			return errAbsent
		}
		t, err := l.engine.Text(ctx, el)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	switch {
	case err == nil:
		return text
	case errors.Is(err, errAbsent), browser.IsAbsent(err):
		return def
	default:
		l.log.Warn("Unexpected failure reading text",
			logger.String("locator", loc.String()),
			logger.Error(err),
		)
		return ExceptionMarker
	}
}

// WaitUntil polls cond until it holds or the timeout expires. Errors from
// cond count as "not yet".
func (l *Layer) WaitUntil(ctx context.Context, cond func(ctx context.Context) (bool, error)) bool {
	return l.poll(ctx, browser.Locator{}, false, cond)
}

// query runs one lookup, retrying staleness within the retry budget.
func (l *Layer) query(ctx context.Context, loc browser.Locator, scope browser.Element) ([]browser.Element, error) {
	var els []browser.Element
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		els, err = l.engine.Query(ctx, loc, scope)
		return err
	})
	return els, err
}

// poll evaluates check now and then every interval until it reports true,
// the timeout passes or ctx ends. With staleFatal a stale error that outlived
// the retry budget ends the wait as a miss.
func (l *Layer) poll(ctx context.Context, loc browser.Locator, staleFatal bool, check func(ctx context.Context) (bool, error)) bool {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	for {
		ok, err := check(waitCtx)
		if ok {
			return true
		}
		if err != nil && waitCtx.Err() == nil {
			l.logLookupError(loc, err)
			if staleFatal && browser.IsStale(err) {
				return false
			}
		}
		timer := time.NewTimer(l.interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (l *Layer) logLookupError(loc browser.Locator, err error) {
	if !loc.Valid() {
		return
	}
	l.log.Debug("Lookup failed",
		logger.String("locator", loc.String()),
		logger.Error(err),
	)
}

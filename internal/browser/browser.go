// Package browser describes the automation surface the harvester drives:
// locating nodes on a rendered page, interacting with them and reading them.
// Any engine that implements Engine can back a crawl; ChromeLauncher is the
// production implementation built on chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports that no element matched a locator.
	ErrNotFound = errors.New("browser: element not found")
	// ErrStale reports that a previously located element is no longer
	// attached to the rendered surface.
	ErrStale = errors.New("browser: stale element reference")
	// ErrTimeout reports that a bounded wait expired.
	ErrTimeout = errors.New("browser: wait timed out")
)

// Strategy selects how a Locator value is interpreted.
type Strategy int

const (
	ByID Strategy = iota + 1
	ByClassName
	ByCSSSelector
	ByXPath
)

func (s Strategy) String() string {
	switch s {
	case ByID:
		return "id"
	case ByClassName:
		return "class"
	case ByCSSSelector:
		return "css"
	case ByXPath:
		return "xpath"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Locator is a selection strategy paired with its selector value.
type Locator struct {
	Strategy Strategy
	Value    string
}

// ID locates an element by its id attribute.
func ID(value string) Locator { return Locator{Strategy: ByID, Value: value} }

// ClassName locates elements carrying a single class.
func ClassName(value string) Locator { return Locator{Strategy: ByClassName, Value: value} }

// CSS locates elements by a CSS selector.
func CSS(value string) Locator { return Locator{Strategy: ByCSSSelector, Value: value} }

// XPath locates elements by an XPath expression.
func XPath(value string) Locator { return Locator{Strategy: ByXPath, Value: value} }

func (l Locator) String() string {
	return l.Strategy.String() + "=" + l.Value
}

// Valid reports whether the locator has a known strategy and a value.
func (l Locator) Valid() bool {
	switch l.Strategy {
	case ByID, ByClassName, ByCSSSelector, ByXPath:
		return strings.TrimSpace(l.Value) != ""
	default:
		return false
	}
}

// CSSSelector returns the CSS equivalent of the locator. XPath locators have
// no CSS form and report false.
func (l Locator) CSSSelector() (string, bool) {
	switch l.Strategy {
	case ByID:
		return `[id="` + strings.ReplaceAll(l.Value, `"`, `\"`) + `"]`, true
	case ByClassName:
		return "." + l.Value, true
	case ByCSSSelector:
		return l.Value, true
	default:
		return "", false
	}
}

// Element is an engine-owned handle to one node of the rendered surface.
// Handles go stale when the surface re-renders the node.
type Element interface {
	Handle() string
}

// Engine is the capability set a crawl needs from an automation session.
// Query never waits: waiting is the caller's policy.
type Engine interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// Query returns every element matching loc at this instant, scoped to
	// scope when it is non-nil. No match is an empty slice, not an error.
	// A detached scope yields ErrStale.
	Query(ctx context.Context, loc Locator, scope Element) ([]Element, error)
	Click(ctx context.Context, el Element) error
	Remove(ctx context.Context, el Element) error
	// Text returns the trimmed rendered text of el.
	Text(ctx context.Context, el Element) (string, error)
	// Screenshot writes an image of the current surface to path.
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Options configure a new automation session.
type Options struct {
	Headless    bool
	Width       int
	Height      int
	ProxyServer string
	UserAgent   string
}

// DefaultOptions returns a headless 1920x1080 session without a proxy.
func DefaultOptions() Options {
	return Options{
		Headless: true,
		Width:    1920,
		Height:   1080,
	}
}

// Launcher starts automation sessions.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Engine, error)
}

// IsStale reports whether err signals a detached element.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}

// IsAbsent reports whether err only means "nothing there (yet)".
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrStale)
}

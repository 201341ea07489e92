package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// objectGroup scopes every remote object handed out by one engine so a
// navigation can release them in one call.
const objectGroup = "harvester"

// staleMarker is thrown by the injected helpers when a handle points at a
// node that is no longer connected to the document.
const staleMarker = "stale element reference"

// ChromeLauncher starts headless Chrome sessions through chromedp.
type ChromeLauncher struct {
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
}

// NewChromeLauncher returns a launcher for the given Chrome binary.
func NewChromeLauncher(execPath string) *ChromeLauncher {
	return &ChromeLauncher{ExecPath: execPath}
}

// Launch starts one browser process. The session outlives ctx cancellation;
// it ends only through Engine.Close.
func (l *ChromeLauncher) Launch(ctx context.Context, opts Options) (Engine, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if l.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeEngine{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

type chromeEngine struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closeOnce     sync.Once
}

type remoteElement struct {
	id   cdpruntime.RemoteObjectID
	desc string
}

func (e remoteElement) Handle() string {
	return e.desc
}

// run executes actions on the browser tab while honoring the deadline and
// cancellation of the caller's ctx.
func (e *chromeEngine) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(e.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(e.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && runCtx.Err() != nil && e.ctx.Err() == nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (e *chromeEngine) Navigate(ctx context.Context, url string) error {
	return e.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Handles from the previous document are meaningless after this.
			_ = cdpruntime.ReleaseObjectGroup(objectGroup).Do(ctx)
			return nil
		}),
		chromedp.Navigate(url),
	)
}

func (e *chromeEngine) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := e.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (e *chromeEngine) Query(ctx context.Context, loc Locator, scope Element) ([]Element, error) {
	decl, err := queryFunction(loc)
	if err != nil {
		return nil, err
	}

	var out []Element
	err = e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		target, err := e.scopeObject(ctx, scope)
		if err != nil {
			return err
		}
		arr, exc, err := cdpruntime.CallFunctionOn(decl).
			WithObjectID(target).
			WithObjectGroup(objectGroup).
			Do(ctx)
		if err != nil {
			return classifyProtocolError(err)
		}
		if exc != nil {
			return exceptionError(exc)
		}
		defer func() { _ = cdpruntime.ReleaseObject(arr.ObjectID).Do(ctx) }()

		props, _, _, exc, err := cdpruntime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
		if err != nil {
			return classifyProtocolError(err)
		}
		if exc != nil {
			return exceptionError(exc)
		}
		out = collectElements(props)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *chromeEngine) Click(ctx context.Context, el Element) error {
	_, err := e.callOn(ctx, el, `function() {
	if (!this.isConnected) { throw new Error("`+staleMarker+`"); }
	this.scrollIntoView({block: "center"});
	this.click();
}`)
	return err
}

func (e *chromeEngine) Remove(ctx context.Context, el Element) error {
	_, err := e.callOn(ctx, el, `function() {
	if (!this.isConnected) { throw new Error("`+staleMarker+`"); }
	this.remove();
}`)
	return err
}

func (e *chromeEngine) Text(ctx context.Context, el Element) (string, error) {
	res, err := e.callOn(ctx, el, `function() {
	if (!this.isConnected) { throw new Error("`+staleMarker+`"); }
	return (this.innerText || this.textContent || "").trim();
}`)
	if err != nil {
		return "", err
	}
	var text string
	if len(res.Value) > 0 {
		if err := json.Unmarshal(res.Value, &text); err != nil {
			return "", fmt.Errorf("decode element text: %w", err)
		}
	}
	return strings.TrimSpace(text), nil
}

func (e *chromeEngine) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := e.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (e *chromeEngine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = chromedp.Cancel(e.ctx)
		e.cancelBrowser()
		e.cancelAlloc()
	})
	return err
}

func (e *chromeEngine) callOn(ctx context.Context, el Element, decl string) (*cdpruntime.RemoteObject, error) {
	remote, ok := el.(remoteElement)
	if !ok {
		return nil, fmt.Errorf("browser: foreign element %T", el)
	}
	var res *cdpruntime.RemoteObject
	err := e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		r, exc, err := cdpruntime.CallFunctionOn(decl).
			WithObjectID(remote.id).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return classifyProtocolError(err)
		}
		if exc != nil {
			return exceptionError(exc)
		}
		res = r
		return nil
	}))
	return res, err
}

func (e *chromeEngine) scopeObject(ctx context.Context, scope Element) (cdpruntime.RemoteObjectID, error) {
	if scope != nil {
		remote, ok := scope.(remoteElement)
		if !ok {
			return "", fmt.Errorf("browser: foreign element %T", scope)
		}
		return remote.id, nil
	}
	doc, exc, err := cdpruntime.Evaluate("document").WithObjectGroup(objectGroup).Do(ctx)
	if err != nil {
		return "", classifyProtocolError(err)
	}
	if exc != nil {
		return "", exceptionError(exc)
	}
	return doc.ObjectID, nil
}

// queryFunction builds the function evaluated with the scope node as this.
func queryFunction(loc Locator) (string, error) {
	if !loc.Valid() {
		return "", fmt.Errorf("browser: invalid locator %s", loc)
	}
	quoted, err := json.Marshal(loc.Value)
	if err != nil {
		return "", err
	}
	guard := `if (this.nodeType !== 9 && !this.isConnected) { throw new Error("` + staleMarker + `"); }`

	if css, ok := loc.CSSSelector(); ok {
		cssQuoted, err := json.Marshal(css)
		if err != nil {
			return "", err
		}
		return `function() { ` + guard + ` return Array.from(this.querySelectorAll(` + string(cssQuoted) + `)); }`, nil
	}
	return `function() { ` + guard + `
	const doc = this.ownerDocument || this;
	const snap = doc.evaluate(` + string(quoted) + `, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < snap.snapshotLength; i++) { out.push(snap.snapshotItem(i)); }
	return out;
}`, nil
}

func collectElements(props []*cdpruntime.PropertyDescriptor) []Element {
	type indexed struct {
		idx int
		el  remoteElement
	}
	var items []indexed
	for _, p := range props {
		idx, err := strconv.Atoi(p.Name)
		if err != nil || p.Value == nil || p.Value.ObjectID == "" {
			continue
		}
		items = append(items, indexed{idx: idx, el: remoteElement{id: p.Value.ObjectID, desc: p.Value.Description}})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
	out := make([]Element, 0, len(items))
	for _, it := range items {
		out = append(out, it.el)
	}
	return out
}

func exceptionError(exc *cdpruntime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	if strings.Contains(msg, staleMarker) {
		return fmt.Errorf("%w: %s", ErrStale, msg)
	}
	return fmt.Errorf("browser: script exception: %s", msg)
}

// classifyProtocolError maps DevTools errors about vanished objects or
// execution contexts to ErrStale.
func classifyProtocolError(err error) error {
	msg := err.Error()
	for _, needle := range []string{
		"Could not find object with given id",
		"Cannot find context with specified id",
		"No node with given id",
		"Node is detached",
	} {
		if strings.Contains(msg, needle) {
			return fmt.Errorf("%w: %v", ErrStale, err)
		}
	}
	return err
}

// Package browsertest provides an in-memory browser.Engine over a scripted
// node tree. It is not safe for concurrent use.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"karriere-harvester/internal/browser"
)

// Node is one element of the fake rendered surface.
type Node struct {
	Tag     string
	ID      string
	Classes []string
	Text    string

	// ClickErr and TextErr are returned instead of performing the action.
	ClickErr error
	TextErr  error
	// OnClick runs after a successful click.
	OnClick func(ctx context.Context, n *Node) error

	children []*Node
	parent   *Node
	page     *Page
	seq      int
}

// El creates a div carrying the given id and classes.
func El(id string, classes ...string) *Node {
	return &Node{Tag: "div", ID: id, Classes: classes}
}

// WithText sets the rendered text and returns n.
func (n *Node) WithText(text string) *Node {
	n.Text = text
	return n
}

// Append attaches children to n and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c.parent != nil {
			c.parent.removeChild(c)
		}
		c.parent = n
		n.children = append(n.children, c)
		if n.page != nil {
			n.page.adopt(c)
		}
	}
	return n
}

// Children returns the current child nodes.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Detach removes n from the surface; its handles go stale.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.removeChild(n)
		n.parent = nil
	}
}

// Attached reports whether n is reachable from the page root.
func (n *Node) Attached() bool {
	if n.page == nil {
		return false
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cur == n.page.root {
			return true
		}
	}
	return false
}

// HasClass reports whether n carries class c.
func (n *Node) HasClass(c string) bool {
	for _, have := range n.Classes {
		if have == c {
			return true
		}
	}
	return false
}

func (n *Node) Handle() string {
	var b strings.Builder
	b.WriteString(n.Tag)
	if n.ID != "" {
		b.WriteString("#" + n.ID)
	}
	for _, c := range n.Classes {
		b.WriteString("." + c)
	}
	fmt.Fprintf(&b, "@%d", n.seq)
	return b.String()
}

func (n *Node) removeChild(c *Node) {
	for i, have := range n.children {
		if have == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// Page is a scripted browser.Engine.
type Page struct {
	root *Node
	url  string
	seq  int

	// NavigateFunc renders the surface for a URL. A nil func leaves an
	// empty document.
	NavigateFunc func(ctx context.Context, p *Page, url string) error
	// CurrentURLErr fails CurrentURL when set.
	CurrentURLErr error
	// ScreenshotErr fails Screenshot when set.
	ScreenshotErr error

	failures map[string][]error
	hooks    map[string][]queryHook
	queries  map[string]int

	Navigations []string
	Clicks      []*Node
	Screenshots []string
	Closed      bool
}

type queryHook struct {
	at int
	fn func(p *Page)
}

// NewPage returns an empty page.
func NewPage() *Page {
	p := &Page{
		failures: map[string][]error{},
		hooks:    map[string][]queryHook{},
		queries:  map[string]int{},
	}
	p.Reset()
	return p
}

// Reset replaces the document with an empty one.
func (p *Page) Reset() {
	if p.root != nil {
		p.root.page = nil
	}
	p.root = &Node{Tag: "html"}
	p.adopt(p.root)
}

// Root returns the document node.
func (p *Page) Root() *Node {
	return p.root
}

// SetURL changes the reported current URL without navigating.
func (p *Page) SetURL(url string) {
	p.url = url
}

// FailQuery makes the next queries of loc fail with errs, one per query.
func (p *Page) FailQuery(loc browser.Locator, errs ...error) {
	p.failures[loc.String()] = append(p.failures[loc.String()], errs...)
}

// StaleQueries makes the next n queries of loc fail as stale.
func (p *Page) StaleQueries(loc browser.Locator, n int) {
	for i := 0; i < n; i++ {
		p.FailQuery(loc, browser.ErrStale)
	}
}

// OnQuery runs fn right before the n-th query (1-based) of loc.
func (p *Page) OnQuery(loc browser.Locator, n int, fn func(p *Page)) {
	p.hooks[loc.String()] = append(p.hooks[loc.String()], queryHook{at: n, fn: fn})
}

// Queries returns how often loc has been queried.
func (p *Page) Queries(loc browser.Locator) int {
	return p.queries[loc.String()]
}

func (p *Page) adopt(n *Node) {
	n.page = p
	p.seq++
	n.seq = p.seq
	if n.Tag == "" {
		n.Tag = "div"
	}
	for _, c := range n.children {
		p.adopt(c)
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Navigations = append(p.Navigations, url)
	p.Reset()
	p.url = url
	if p.NavigateFunc != nil {
		return p.NavigateFunc(ctx, p, url)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.CurrentURLErr != nil {
		return "", p.CurrentURLErr
	}
	return p.url, nil
}

func (p *Page) Query(ctx context.Context, loc browser.Locator, scope browser.Element) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := loc.String()
	p.queries[key]++
	count := p.queries[key]
	for _, h := range p.hooks[key] {
		if h.at == count {
			h.fn(p)
		}
	}
	if errs := p.failures[key]; len(errs) > 0 {
		p.failures[key] = errs[1:]
		return nil, errs[0]
	}

	match, fromRoot, err := matcher(loc)
	if err != nil {
		return nil, err
	}
	base := p.root
	if scope != nil {
		n, err := p.node(scope)
		if err != nil {
			return nil, err
		}
		if !fromRoot {
			base = n
		}
	}
	out := []browser.Element{}
	walk(base, func(n *Node) {
		if n != base && match(n) {
			out = append(out, n)
		}
	})
	return out, nil
}

func (p *Page) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.node(el)
	if err != nil {
		return err
	}
	if n.ClickErr != nil {
		return n.ClickErr
	}
	p.Clicks = append(p.Clicks, n)
	if n.OnClick != nil {
		return n.OnClick(ctx, n)
	}
	return nil
}

func (p *Page) Remove(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.node(el)
	if err != nil {
		return err
	}
	n.Detach()
	return nil
}

func (p *Page) Text(ctx context.Context, el browser.Element) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n, err := p.node(el)
	if err != nil {
		return "", err
	}
	if n.TextErr != nil {
		return "", n.TextErr
	}
	return strings.TrimSpace(n.Text), nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}
	p.Screenshots = append(p.Screenshots, path)
	return nil
}

func (p *Page) Close() error {
	p.Closed = true
	return nil
}

func (p *Page) node(el browser.Element) (*Node, error) {
	n, ok := el.(*Node)
	if !ok {
		return nil, fmt.Errorf("browsertest: foreign element %T", el)
	}
	if n.page != p || !n.Attached() {
		return nil, fmt.Errorf("%w: %s", browser.ErrStale, n.Handle())
	}
	return n, nil
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

var (
	xpathPattern = regexp.MustCompile(`^(\.?)//(\*|[a-zA-Z]+)(?:\[@(class|id)='([^']*)'\])?$`)
	cssPattern   = regexp.MustCompile(`^([a-zA-Z]*)((?:[#.][\w-]+)*)$`)
	cssIDAttr    = regexp.MustCompile(`^\[id="((?:[^"\\]|\\.)*)"\]$`)
)

var errUnsupported = errors.New("browsertest: unsupported locator")

// matcher understands the subset of XPath and CSS the harvester uses:
// //tag[@class='x'], //*[@id='x'] (".//" for scope-relative), tag, #id,
// .class chains and [id="x"]. XPath starting with "//" is document-wide
// even when a scope is given.
func matcher(loc browser.Locator) (func(*Node) bool, bool, error) {
	if !loc.Valid() {
		return nil, false, fmt.Errorf("%w: %s", errUnsupported, loc)
	}
	if loc.Strategy == browser.ByXPath {
		m := xpathPattern.FindStringSubmatch(loc.Value)
		if m == nil {
			return nil, false, fmt.Errorf("%w: %s", errUnsupported, loc)
		}
		tag, attr, value := m[2], m[3], m[4]
		return func(n *Node) bool {
			if tag != "*" && n.Tag != tag {
				return false
			}
			switch attr {
			case "class":
				return strings.Join(n.Classes, " ") == value
			case "id":
				return n.ID == value
			}
			return true
		}, m[1] == "", nil
	}

	css, _ := loc.CSSSelector()
	if m := cssIDAttr.FindStringSubmatch(css); m != nil {
		id := strings.ReplaceAll(m[1], `\"`, `"`)
		return func(n *Node) bool { return n.ID == id }, false, nil
	}
	m := cssPattern.FindStringSubmatch(css)
	if m == nil || css == "" {
		return nil, false, fmt.Errorf("%w: %s", errUnsupported, loc)
	}
	tag := m[1]
	var id string
	var classes []string
	for _, part := range regexp.MustCompile(`[#.][\w-]+`).FindAllString(m[2], -1) {
		if part[0] == '#' {
			id = part[1:]
		} else {
			classes = append(classes, part[1:])
		}
	}
	return func(n *Node) bool {
		if tag != "" && n.Tag != tag {
			return false
		}
		if id != "" && n.ID != id {
			return false
		}
		for _, c := range classes {
			if !n.HasClass(c) {
				return false
			}
		}
		return true
	}, false, nil
}

// Launcher hands out pre-built pages in order and records every launch.
type Launcher struct {
	Pages     []*Page
	LaunchErr error
	Launches  []browser.Options
}

func (l *Launcher) Launch(ctx context.Context, opts browser.Options) (browser.Engine, error) {
	l.Launches = append(l.Launches, opts)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	if len(l.Pages) == 0 {
		return NewPage(), nil
	}
	p := l.Pages[0]
	l.Pages = l.Pages[1:]
	return p, nil
}

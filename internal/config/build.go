package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"karriere-harvester/internal/access"
	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/crawler"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/session"
)

// BrowserOptions returns the session options.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Headless:  c.Browser.Headless,
		Width:     c.Browser.Width,
		Height:    c.Browser.Height,
		UserAgent: c.Browser.UserAgent,
	}
}

// RetryPolicy returns the staleness retry policy of the access layer.
func (c *Config) RetryPolicy() access.RetryPolicy {
	p := access.DefaultRetryPolicy()
	p.MaxAttempts = c.Access.RetryAttempts
	p.Delay = c.Access.RetryDelay
	p.MaxDelay = c.Access.RetryMaxDelay
	return p
}

// HarvesterOptions returns the crawler options. Robots rules are fetched
// separately since they need the network.
func (c *Config) HarvesterOptions() (crawler.Options, error) {
	sel, err := c.Selectors()
	if err != nil {
		return crawler.Options{}, err
	}
	return crawler.Options{
		BaseURL:       strings.TrimRight(c.Site.BaseURL, "/"),
		Selectors:     sel,
		WaitTimeout:   c.Access.WaitTimeout,
		PollInterval:  c.Access.PollInterval,
		Retry:         c.RetryPolicy(),
		ConsentWait:   c.Crawl.ConsentWait,
		ConsentSettle: c.Crawl.ConsentSettle,
		LoadMoreWait:  c.Crawl.LoadMoreWait,
		OverlayWait:   c.Crawl.OverlayWait,
		SnapshotDir:   c.Crawl.SnapshotDir,
	}, nil
}

// Pacer returns a limiter for navigations and load-more clicks, or nil when
// pacing is disabled.
func (c *Config) Pacer() crawler.Pacer {
	if c.Crawl.RatePerSecond <= 0 {
		return nil
	}
	burst := c.Crawl.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.Crawl.RatePerSecond), burst)
}

// HTTPClient returns the resty client used for proxy lists and robots.txt.
func (c *Config) HTTPClient() *resty.Client {
	ua := c.Browser.UserAgent
	if ua == "" {
		ua = karriere.DefaultUserAgent
	}
	return resty.New().
		SetTimeout(c.Proxy.Timeout).
		SetHeader("User-Agent", ua)
}

// ProxySource chains the configured proxy sources, or returns nil when none
// is configured.
func (c *Config) ProxySource(client *resty.Client) session.ProxySource {
	var chain session.ChainSource
	if c.Proxy.URL != "" {
		chain = append(chain, session.StaticSource(c.Proxy.URL))
	}
	if c.Proxy.Pool != "" {
		chain = append(chain, session.NewPoolSource(c.Proxy.Pool, os.Getenv("HOSTNAME")))
	}
	if c.Proxy.ListURL != "" {
		chain = append(chain, session.NewListSource(client, c.Proxy.ListURL, c.Proxy.ListScheme))
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}

// Selectors returns the built-in selectors with the configured overrides
// applied.
func (c *Config) Selectors() (karriere.Selectors, error) {
	sel := karriere.DefaultSelectors()
	fields := map[string]*browser.Locator{
		"search_input":      &sel.SearchInput,
		"consent_reject":    &sel.ConsentReject,
		"results_container": &sel.ResultsContainer,
		"job_item":          &sel.JobItem,
		"job_title":         &sel.JobTitle,
		"job_company":       &sel.JobCompany,
		"list_header":       &sel.ListHeader,
		"overlay":           &sel.Overlay,
		"load_more":         &sel.LoadMore,
		"detail_panel":      &sel.DetailPanel,
		"location":          &sel.Location,
		"employment_type":   &sel.EmploymentType,
		"salary":            &sel.Salary,
		"experience":        &sel.Experience,
	}
	for name, raw := range c.Site.Selectors {
		field, ok := fields[strings.ToLower(name)]
		if !ok {
			return karriere.Selectors{}, fmt.Errorf("unknown selector %q", name)
		}
		loc, err := ParseLocator(raw)
		if err != nil {
			return karriere.Selectors{}, fmt.Errorf("selector %s: %w", name, err)
		}
		*field = loc
	}
	if err := sel.Validate(); err != nil {
		return karriere.Selectors{}, err
	}
	return sel, nil
}

// ParseLocator parses "strategy=value" where strategy is id, class, css or
// xpath.
func ParseLocator(raw string) (browser.Locator, error) {
	strategy, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(value) == "" {
		return browser.Locator{}, fmt.Errorf("want strategy=value, got %q", raw)
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "id":
		return browser.ID(value), nil
	case "class":
		return browser.ClassName(value), nil
	case "css":
		return browser.CSS(value), nil
	case "xpath":
		return browser.XPath(value), nil
	default:
		return browser.Locator{}, fmt.Errorf("unknown strategy %q", strategy)
	}
}

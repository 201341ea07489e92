package karriere

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent identifies the harvester to the site's robots rules.
const DefaultUserAgent = "KarriereHarvester/1.0"

// RobotsRules holds the disallow prefixes of one user-agent block.
// Disallow: /jobs/intern forbids /jobs/intern and /jobs/intern/wien.
type RobotsRules struct {
	disallowPrefixes []string
}

// Allowed reports whether path may be crawled. Nil or empty rules allow all.
func (r *RobotsRules) Allowed(path string) bool {
	if r == nil || len(r.disallowPrefixes) == 0 {
		return true
	}
	path = normalizePath(path)
	for _, prefix := range r.disallowPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// AllowedURL is Allowed applied to the path of rawURL.
func (r *RobotsRules) AllowedURL(rawURL string) bool {
	return r.Allowed(PathFromURL(rawURL))
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

const robotsTimeout = 15 * time.Second

// FetchRobots downloads robots.txt from the host of baseURL.
func FetchRobots(ctx context.Context, client *resty.Client, baseURL string) ([]byte, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/robots.txt"
	u.RawQuery = ""
	u.Fragment = ""

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("User-Agent", DefaultUserAgent).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch robots.txt: unexpected status %d for %s", resp.StatusCode(), u.String())
	}
	return resp.Body(), nil
}

// LoadRobots fetches and parses the rules that apply to DefaultUserAgent.
func LoadRobots(ctx context.Context, client *resty.Client, baseURL string) (*RobotsRules, error) {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()
	body, err := FetchRobots(ctx, client, baseURL)
	if err != nil {
		return nil, err
	}
	return ParseRobots(body, DefaultUserAgent), nil
}

// ParseRobots collects the Disallow lines of the first block matching
// userAgent exactly or through "*".
func ParseRobots(body []byte, userAgent string) *RobotsRules {
	r := &RobotsRules{}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	var inMatchingBlock, matched, lastWasAgent bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "user-agent:") {
			agent := strings.TrimSpace(line[len("user-agent:"):])
			hit := agent == "*" || strings.EqualFold(agent, userAgent)
			switch {
			case lastWasAgent && inMatchingBlock:
				// grouped agent lines share one block
			case hit && !matched:
				inMatchingBlock, matched = true, true
			default:
				inMatchingBlock = false
			}
			lastWasAgent = true
			continue
		}
		lastWasAgent = false
		if inMatchingBlock && strings.HasPrefix(lower, "disallow:") {
			if path := strings.TrimSpace(line[len("disallow:"):]); path != "" {
				r.disallowPrefixes = append(r.disallowPrefixes, normalizePath(path))
			}
		}
	}
	return r
}

// PathFromURL returns the path component of rawURL, "/" when unparsable.
func PathFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	return normalizePath(u.Path)
}

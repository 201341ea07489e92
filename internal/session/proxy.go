package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
)

// ErrNoProxy reports that a source has no egress address to offer.
var ErrNoProxy = errors.New("session: no proxy available")

//go:generate mockgen -destination=../../mocks/mock_session.go -package=mocks karriere-harvester/internal/session ProxySource

// ProxySource yields egress proxy addresses for new sessions.
type ProxySource interface {
	Next(ctx context.Context) (string, error)
}

// StaticSource always returns the same proxy.
type StaticSource string

func (s StaticSource) Next(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoProxy
	}
	return strings.TrimSpace(string(s)), nil
}

// PoolSource picks from a comma-separated pool. The first pick is derived
// from the host name so replicas spread over the pool; later picks rotate.
type PoolSource struct {
	mu      sync.Mutex
	members []string
	next    int
	started bool
}

// NewPoolSource parses pool and seeds the rotation from hostname.
func NewPoolSource(pool, hostname string) *PoolSource {
	members := SplitPool(pool)
	return &PoolSource{members: members, next: poolIndex(len(members), hostname)}
}

func (p *PoolSource) Next(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.members) == 0 {
		return "", ErrNoProxy
	}
	if p.started {
		p.next = (p.next + 1) % len(p.members)
	}
	p.started = true
	return p.members[p.next], nil
}

// SelectFromPool returns the pool member assigned to hostname, "" for an
// empty pool.
func SelectFromPool(pool, hostname string) string {
	members := SplitPool(pool)
	if len(members) == 0 {
		return ""
	}
	return members[poolIndex(len(members), hostname)]
}

// SplitPool splits a comma-separated pool, dropping blanks.
func SplitPool(pool string) []string {
	var valid []string
	for _, p := range strings.Split(strings.TrimSpace(pool), ",") {
		if p = strings.TrimSpace(p); p != "" {
			valid = append(valid, p)
		}
	}
	return valid
}

func poolIndex(n int, hostname string) int {
	if n == 0 {
		return 0
	}
	if hostname == "" {
		hostname = "0"
	}
	h := fnv.New32a()
	h.Write([]byte(hostname))
	return int(h.Sum32() % uint32(n))
}

// ListSource downloads a plain-text proxy list, one host:port per line, and
// returns a random entry.
type ListSource struct {
	client *resty.Client
	url    string
	scheme string
	// Pick chooses an index in [0, n); defaults to math/rand.
	Pick func(n int) int
}

// NewListSource fetches proxies from listURL. Entries without a scheme get
// scheme prepended, e.g. "http".
func NewListSource(client *resty.Client, listURL, scheme string) *ListSource {
	if client == nil {
		client = resty.New()
	}
	return &ListSource{client: client, url: listURL, scheme: scheme, Pick: rand.Intn}
}

func (s *ListSource) Next(ctx context.Context) (string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return "", fmt.Errorf("fetch proxy list: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch proxy list: unexpected status %d", resp.StatusCode())
	}
	entries := parseProxyList(string(resp.Body()))
	if len(entries) == 0 {
		return "", ErrNoProxy
	}
	entry := entries[s.Pick(len(entries))]
	if s.scheme != "" && !strings.Contains(entry, "://") {
		entry = s.scheme + "://" + entry
	}
	return entry, nil
}

func parseProxyList(body string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ChainSource returns the first address any of its sources yields.
type ChainSource []ProxySource

func (c ChainSource) Next(ctx context.Context) (string, error) {
	var errs []error
	for _, src := range c {
		if src == nil {
			continue
		}
		addr, err := src.Next(ctx)
		if err == nil && addr != "" {
			return addr, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return "", ErrNoProxy
	}
	return "", errors.Join(append([]error{ErrNoProxy}, errs...)...)
}

// Package session owns the single automation session of a crawl run.
package session

import (
	"context"
	"fmt"

	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/logger"
)

// Manager launches, replaces and tears down the run's engine. At most one
// engine is live at a time. It is not safe for concurrent use.
type Manager struct {
	launcher browser.Launcher
	opts     browser.Options
	proxies  ProxySource
	log      logger.Logger

	current browser.Engine
	proxy   string
	last    string
}

// NewManager returns a manager launching engines with opts. proxies may be
// nil, in which case sessions never use a proxy.
func NewManager(launcher browser.Launcher, opts browser.Options, proxies ProxySource, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{launcher: launcher, opts: opts, proxies: proxies, log: log}
}

// Open tears down any live session and launches a new one. With useProxy the
// egress address comes from the proxy source; failing to get one is logged
// and the session opens without a proxy.
func (m *Manager) Open(ctx context.Context, useProxy bool) (browser.Engine, error) {
	if err := m.Close(); err != nil {
		m.log.Warn("Failed to close previous session", logger.Error(err))
	}

	opts := m.opts
	opts.ProxyServer = ""
	if useProxy {
		opts.ProxyServer = m.resolveProxy(ctx)
	}

	engine, err := m.launcher.Launch(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("launch session: %w", err)
	}
	m.current = engine
	m.proxy = opts.ProxyServer
	m.last = opts.ProxyServer

	if m.proxy != "" {
		m.log.Info("Session created", logger.String("proxy", m.proxy))
	} else {
		m.log.Info("Session created")
	}
	return engine, nil
}

func (m *Manager) resolveProxy(ctx context.Context) string {
	if m.proxies == nil {
		m.log.Warn("Proxy requested but no proxy source configured")
		return ""
	}
	addr, err := m.proxies.Next(ctx)
	if err != nil {
		m.log.Warn("Proxy lookup failed, continuing without proxy", logger.Error(err))
		return ""
	}
	return addr
}

// Close tears down the live session, if any.
func (m *Manager) Close() error {
	if m.current == nil {
		return nil
	}
	engine := m.current
	m.current = nil
	m.proxy = ""
	if err := engine.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Current returns the live engine or nil.
func (m *Manager) Current() browser.Engine {
	return m.current
}

// Proxy returns the egress address of the live session, "" without one.
func (m *Manager) Proxy() string {
	return m.proxy
}

// LastProxy returns the egress address of the most recently opened
// session, even after it was closed.
func (m *Manager) LastProxy() string {
	return m.last
}

// Run opens a session, hands it to fn and tears it down however fn exits,
// panics included.
func (m *Manager) Run(ctx context.Context, useProxy bool, fn func(ctx context.Context, engine browser.Engine) error) (err error) {
	engine, err := m.Open(ctx, useProxy)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			m.log.Warn("Failed to close session", logger.Error(cerr))
		}
	}()
	return fn(ctx, engine)
}

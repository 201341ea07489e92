package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/browser/browsertest"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/logger"
)

func launchSite(t *testing.T, site *browsertest.Site) *browsertest.Page {
	t.Helper()
	engine, err := site.Launch(context.Background(), browser.DefaultOptions())
	require.NoError(t, err)
	return engine.(*browsertest.Page)
}

func TestBootstrapRejectsConsent(t *testing.T) {
	site := browsertest.NewSite(5)
	site.Consent = true
	page := launchSite(t, site)

	err := Bootstrap(context.Background(), testLayer(page), karriere.DefaultSelectors(), karriere.BaseURL, time.Millisecond, logger.NewNop())
	require.NoError(t, err)
	assert.True(t, site.ConsentRejected)
	require.Len(t, page.Clicks, 2)
	assert.Equal(t, karriere.IDSearchInput, page.Clicks[0].ID)
}

func TestBootstrapWithoutConsentPrompt(t *testing.T) {
	page := launchSite(t, browsertest.NewSite(5))

	err := Bootstrap(context.Background(), testLayer(page), karriere.DefaultSelectors(), karriere.BaseURL, time.Hour, logger.NewNop())
	require.NoError(t, err)
	assert.Len(t, page.Clicks, 1)
}

func TestBootstrapFailures(t *testing.T) {
	site := browsertest.NewSite(5)
	site.NoSearchInput = true
	page := launchSite(t, site)
	err := Bootstrap(context.Background(), testLayer(page), karriere.DefaultSelectors(), karriere.BaseURL, 0, logger.NewNop())
	assert.ErrorIs(t, err, ErrSurfaceUnusable)

	page = browsertest.NewPage()
	boom := errors.New("dns failure")
	page.NavigateFunc = func(context.Context, *browsertest.Page, string) error { return boom }
	err = Bootstrap(context.Background(), testLayer(page), karriere.DefaultSelectors(), karriere.BaseURL, 0, logger.NewNop())
	assert.ErrorIs(t, err, boom)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), 0))
}

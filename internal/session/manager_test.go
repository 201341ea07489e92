package session

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/browser/browsertest"
	"karriere-harvester/internal/logger"
	"karriere-harvester/mocks"
)

func TestOpenWithoutProxy(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m := NewManager(launcher, browser.DefaultOptions(), nil, logger.NewNop())

	engine, err := m.Open(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, engine, m.Current())
	require.Len(t, launcher.Launches, 1)
	assert.Equal(t, "", launcher.Launches[0].ProxyServer)
	assert.True(t, launcher.Launches[0].Headless)
	assert.Equal(t, 1920, launcher.Launches[0].Width)
	assert.Equal(t, 1080, launcher.Launches[0].Height)
}

func TestOpenUsesProxyFromSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mocks.NewMockProxySource(ctrl)
	src.EXPECT().Next(gomock.Any()).Return("http://10.0.0.1:8080", nil)

	launcher := &browsertest.Launcher{}
	m := NewManager(launcher, browser.DefaultOptions(), src, nil)

	_, err := m.Open(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8080", launcher.Launches[0].ProxyServer)
	assert.Equal(t, "http://10.0.0.1:8080", m.Proxy())

	require.NoError(t, m.Close())
	assert.Equal(t, "", m.Proxy())
	assert.Equal(t, "http://10.0.0.1:8080", m.LastProxy())
}

func TestOpenFallsBackWhenProxyLookupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mocks.NewMockProxySource(ctrl)
	src.EXPECT().Next(gomock.Any()).Return("", errors.New("list unavailable"))

	launcher := &browsertest.Launcher{}
	m := NewManager(launcher, browser.DefaultOptions(), src, nil)

	_, err := m.Open(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, launcher.Launches, 1)
	assert.Equal(t, "", launcher.Launches[0].ProxyServer)
}

func TestOpenReplacesLiveSession(t *testing.T) {
	first, second := browsertest.NewPage(), browsertest.NewPage()
	launcher := &browsertest.Launcher{Pages: []*browsertest.Page{first, second}}
	m := NewManager(launcher, browser.DefaultOptions(), nil, nil)

	_, err := m.Open(context.Background(), false)
	require.NoError(t, err)
	_, err = m.Open(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, first.Closed)
	assert.False(t, second.Closed)
	assert.Len(t, launcher.Launches, 2)
}

func TestOpenLaunchFailure(t *testing.T) {
	boom := errors.New("no chrome")
	m := NewManager(&browsertest.Launcher{LaunchErr: boom}, browser.DefaultOptions(), nil, nil)

	_, err := m.Open(context.Background(), false)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, m.Current())
}

func TestRunTearsDownOnEveryExit(t *testing.T) {
	page := browsertest.NewPage()
	m := NewManager(&browsertest.Launcher{Pages: []*browsertest.Page{page}}, browser.DefaultOptions(), nil, nil)
	boom := errors.New("crawl failed")
	err := m.Run(context.Background(), false, func(context.Context, browser.Engine) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, page.Closed)
	assert.Nil(t, m.Current())

	page = browsertest.NewPage()
	m = NewManager(&browsertest.Launcher{Pages: []*browsertest.Page{page}}, browser.DefaultOptions(), nil, nil)
	assert.Panics(t, func() {
		_ = m.Run(context.Background(), false, func(context.Context, browser.Engine) error { panic("boom") })
	})
	assert.True(t, page.Closed)
}

func TestCloseWithoutSession(t *testing.T) {
	m := NewManager(&browsertest.Launcher{}, browser.DefaultOptions(), nil, nil)
	assert.NoError(t, m.Close())
}

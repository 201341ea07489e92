package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/logger"
)

func TestNewBuildsUsableLogger(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	child := l.With(logger.String("run_id", "r1"))
	assert.NotSame(t, l, child)
	child.Info("filtered at warn level")
	child.Warn("kept", logger.Int("items", 3))
}

func TestFromContextFallsBackToNop(t *testing.T) {
	t.Parallel()

	got := logger.FromContext(context.Background())
	require.NotNil(t, got)
	assert.NoError(t, got.Sync())
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "error", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	ctx := logger.WithContext(context.Background(), l)
	assert.Same(t, l, logger.FromContext(ctx))
}

func TestFromContextOr(t *testing.T) {
	t.Parallel()

	fallback := logger.NewNop()
	assert.Same(t, fallback, logger.FromContextOr(context.Background(), fallback))

	stored, err := logger.New(logger.Config{Level: "error", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), stored)
	assert.Same(t, stored, logger.FromContextOr(ctx, fallback))
}

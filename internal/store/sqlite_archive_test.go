package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/models"
)

func TestSQLiteArchiveUpsertsByID(t *testing.T) {
	ctx := context.Background()
	archive, err := OpenSQLiteArchive(ctx, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	defer archive.Close()

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	archive.now = func() time.Time { return clock }

	added, err := archive.Save(ctx, "run-1", []models.JobRecord{
		{ID: "1", Name: "Go Dev", URL: "u1", Company: "Acme"},
		{ID: "2", Name: "SRE", URL: "u2", Company: "Beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	clock = clock.Add(time.Hour)
	added, err = archive.Save(ctx, "run-2", []models.JobRecord{
		{ID: "2", Name: "Senior SRE", URL: "u2", Company: "Beta"},
		{ID: "3", Name: "Data", URL: "u3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	n, err := archive.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec, ok, err := archive.Get(ctx, "2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Senior SRE", rec.Name)

	_, ok, err = archive.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "3", all[2].ID)
}

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/crawler"
	"karriere-harvester/internal/export"
	"karriere-harvester/internal/models"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSeeds(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
		seeds   int
	}{
		{"valid", writeFile(t, dir, "valid.json", `{"seeds":[{"terms":["golang"],"locations":["wien"],"limit":10}]}`), false, 1},
		{"missing", filepath.Join(dir, "missing.json"), true, 0},
		{"empty seeds", writeFile(t, dir, "empty.json", `{"seeds":[]}`), true, 0},
		{"bad json", writeFile(t, dir, "bad.json", `{not json`), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := loadSeeds(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, file.Seeds, tt.seeds)
		})
	}

	_, err := loadSeeds(filepath.Join(dir, "empty.json"))
	assert.ErrorIs(t, err, errNoSeeds)
}

func TestSubmitAll(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/crawl" {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		if q.Get("terms") == "broken" {
			http.Error(w, "failed to enqueue request", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(models.RunStatus{
			RunID:  "run-" + q.Get("terms") + "-" + q.Get("limit"),
			Status: models.RunQueued,
		})
	}))
	defer srv.Close()

	seeds := []Seed{
		{Terms: []string{"golang", "rust"}, Locations: []string{"wien"}, Limit: 5},
		{Terms: []string{"broken"}},
	}
	results := submitAll(context.Background(), resty.New().SetTimeout(5*time.Second), srv.URL+"/", seeds)

	require.Len(t, results, 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "run-golang,rust-5", results[0].RunID)
	assert.Error(t, results[1].Err)
	assert.Equal(t, http.StatusBadGateway, results[1].Status)

	var buf bytes.Buffer
	failed := reportSubmissions(&buf, results)
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "queued run_id=run-golang,rust-5")
	assert.Contains(t, buf.String(), "submitted 2 seeds, 1 failed")
}

func TestRenderSummary(t *testing.T) {
	res := crawler.Result{
		RunID:      "run-1",
		Records:    []models.JobRecord{{ID: "1"}, {ID: "2"}},
		Duplicates: 1,
		Reports: []models.URLReport{
			{URL: "https://www.karriere.at/jobs/golang/wien", ItemsSeen: 3, Elapsed: 1500 * time.Millisecond, SecondsPerItem: 0.5},
		},
		ExportPath: "out/karriere_at_parsing_golang.csv",
	}

	var buf bytes.Buffer
	renderSummary(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "https://www.karriere.at/jobs/golang/wien")
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "records: 2  duplicates dropped: 1  failures: 0")
	assert.Contains(t, out, "exported: out/karriere_at_parsing_golang.csv")
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.csv")
	require.NoError(t, export.WriteCSVFile(path, []models.JobRecord{
		{ID: "1", EmploymentType: "Vollzeit, Teilzeit"},
		{ID: "2", EmploymentType: "Vollzeit"},
	}))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"analyze", "--locale", "en", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Vollzeit")
	assert.Contains(t, out, "Teilzeit")
	assert.True(t, strings.Index(out, "Vollzeit") < strings.Index(out, "Teilzeit"), "most frequent type first")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "harvester dev\n", buf.String())
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"karriere-harvester/internal/models"
)

// Seed is one crawl request in a seeds file.
type Seed struct {
	Terms     []string `json:"terms"`
	Locations []string `json:"locations"`
	Limit     int      `json:"limit"`
	Proxy     bool     `json:"proxy"`
}

// SeedFile is the JSON layout read by submit:
//
//	{"seeds": [{"terms": ["golang"], "locations": ["wien"], "limit": 100}]}
type SeedFile struct {
	Seeds []Seed `json:"seeds"`
}

type submission struct {
	Index  int
	Seed   Seed
	RunID  string
	Status int
	Err    error
}

var errNoSeeds = errors.New("seeds file has no seeds")

var submitFlags struct {
	seeds   string
	api     string
	timeout time.Duration
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.seeds, "seeds", "seeds.json", "JSON file with the crawl requests to submit")
	f.StringVar(&submitFlags.api, "api", "http://localhost:8080", "API base URL")
	f.DurationVar(&submitFlags.timeout, "timeout", 30*time.Second, "Per-request timeout")
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit [--seeds seeds.json] [--api url]",
	Short: "Queues crawl requests on the API, concurrently.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, err := loadSeeds(submitFlags.seeds)
		if err != nil {
			return err
		}
		client := resty.New().SetTimeout(submitFlags.timeout)
		results := submitAll(cmd.Context(), client, submitFlags.api, file.Seeds)
		failed := reportSubmissions(cmd.OutOrStdout(), results)
		if failed > 0 {
			return fmt.Errorf("%d of %d submissions failed", failed, len(results))
		}
		return nil
	},
}

func loadSeeds(path string) (SeedFile, error) {
	var file SeedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Seeds) == 0 {
		return file, errNoSeeds
	}
	return file, nil
}

// submitAll posts every seed to {api}/crawl and returns the outcomes in
// seed order.
func submitAll(ctx context.Context, client *resty.Client, api string, seeds []Seed) []submission {
	endpoint := strings.TrimRight(api, "/") + "/crawl"
	results := make([]submission, len(seeds))
	var wg sync.WaitGroup
	for i, seed := range seeds {
		wg.Add(1)
		go func(idx int, s Seed) {
			defer wg.Done()
			results[idx] = submitSeed(ctx, client, endpoint, idx, s)
		}(i, seed)
	}
	wg.Wait()
	return results
}

func submitSeed(ctx context.Context, client *resty.Client, endpoint string, idx int, seed Seed) submission {
	out := submission{Index: idx, Seed: seed}
	params := map[string]string{
		"terms": strings.Join(seed.Terms, ","),
		"proxy": strconv.FormatBool(seed.Proxy),
	}
	if len(seed.Locations) > 0 {
		params["locations"] = strings.Join(seed.Locations, ",")
	}
	if seed.Limit > 0 {
		params["limit"] = strconv.Itoa(seed.Limit)
	}

	var status models.RunStatus
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&status).
		Post(endpoint)
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = resp.StatusCode()
	if out.Status != http.StatusAccepted {
		out.Err = fmt.Errorf("unexpected status %d: %s", out.Status, strings.TrimSpace(resp.String()))
		return out
	}
	out.RunID = status.RunID
	return out
}

func reportSubmissions(w io.Writer, results []submission) int {
	failed := 0
	for _, r := range results {
		terms := strings.Join(r.Seed.Terms, ",")
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "[%d] terms=%q err=%v\n", r.Index, terms, r.Err)
			continue
		}
		fmt.Fprintf(w, "[%d] terms=%q queued run_id=%s\n", r.Index, terms, r.RunID)
	}
	fmt.Fprintf(w, "submitted %d seeds, %d failed\n", len(results), failed)
	return failed
}

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/crawler"
	"karriere-harvester/internal/export"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/session"
	"karriere-harvester/internal/store"
)

var crawlFlags struct {
	terms     []string
	locations []string
	limit     int
	proxy     bool
	noExport  bool
	format    string
	outDir    string
	archive   string
}

func init() {
	f := crawlCmd.Flags()
	f.StringSliceVarP(&crawlFlags.terms, "term", "t", nil, "Search term; repeat or comma-separate for several")
	f.StringSliceVarP(&crawlFlags.locations, "location", "l", nil, "Location; repeat or comma-separate for several")
	f.IntVar(&crawlFlags.limit, "limit", crawler.DefaultLimit, "Stop once this many records are accumulated")
	f.BoolVar(&crawlFlags.proxy, "proxy", false, "Route the session through a configured proxy")
	f.BoolVar(&crawlFlags.noExport, "no-export", false, "Skip the export file")
	f.StringVar(&crawlFlags.format, "format", "", "Export format (csv or xlsx); overrides export.format")
	f.StringVar(&crawlFlags.outDir, "out", "", "Export directory; overrides export.dir")
	f.StringVar(&crawlFlags.archive, "archive", "", "SQLite archive path; overrides sqlite.path")
	_ = crawlCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl --term <term> [--location <location>] [--limit n]",
	Short: "Runs one harvest and prints a per-URL summary.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if crawlFlags.format != "" {
			cfg.Export.Format = crawlFlags.format
		}
		if crawlFlags.outDir != "" {
			cfg.Export.Dir = crawlFlags.outDir
		}
		if crawlFlags.archive != "" {
			cfg.SQLite.Path = crawlFlags.archive
		}

		opts, err := cfg.HarvesterOptions()
		if err != nil {
			return err
		}
		client := cfg.HTTPClient()
		if cfg.Crawl.RespectRobots {
			rules, err := karriere.LoadRobots(ctx, client, opts.BaseURL)
			if err != nil {
				log.Warn("robots.txt fetch failed, allowing all paths", logger.Error(err))
			} else {
				opts.Robots = rules
			}
		}
		exporter, err := export.New(cfg.Export.Dir, cfg.Export.Format)
		if err != nil {
			return err
		}

		sessions := session.NewManager(browser.NewChromeLauncher(cfg.Browser.ExecPath), cfg.BrowserOptions(), cfg.ProxySource(client), log)
		h := crawler.NewHarvester(sessions, opts,
			crawler.WithExporter(exporter),
			crawler.WithPacer(cfg.Pacer()),
			crawler.WithLogger(log),
		)

		res, err := h.Fetch(ctx, crawlFlags.terms, crawlFlags.locations, crawler.FetchOptions{
			Limit:      crawlFlags.limit,
			AutoExport: cfg.Crawl.AutoExport && !crawlFlags.noExport,
			UseProxy:   crawlFlags.proxy,
		})
		renderSummary(cmd.OutOrStdout(), res)
		if err != nil {
			return err
		}

		if cfg.SQLite.Path != "" && len(res.Records) > 0 {
			archive, err := store.OpenSQLiteArchive(ctx, cfg.SQLite.Path)
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()
			added, err := archive.Save(ctx, res.RunID, res.Records)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d records (%d new) to %s\n", len(res.Records), added, cfg.SQLite.Path)
		}
		return nil
	},
}

// renderSummary prints one row per crawled URL and the run totals.
func renderSummary(w io.Writer, res crawler.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Run " + res.RunID)
	t.AppendHeader(table.Row{"URL", "Items", "Elapsed", "Sec/item"})
	var items int
	for _, r := range res.Reports {
		items += r.ItemsSeen
		t.AppendRow(table.Row{r.URL, r.ItemsSeen, r.Elapsed.Round(time.Millisecond), fmt.Sprintf("%.2f", r.SecondsPerItem)})
	}
	t.AppendFooter(table.Row{"Total", items, "", ""})
	t.Render()

	fmt.Fprintf(w, "records: %d  duplicates dropped: %d  failures: %d\n", len(res.Records), res.Duplicates, res.Failures)
	if res.ExportPath != "" {
		fmt.Fprintf(w, "exported: %s\n", res.ExportPath)
	}
}

// Package analysis aggregates exported records.
package analysis

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"karriere-harvester/internal/models"
)

// Count is one employment type and how often it was observed.
type Count struct {
	Type    string
	Count   int
	Percent float64
}

// Tally counts employment types across records. A multi-value field such
// as "Vollzeit, Teilzeit" contributes one observation per value. Results are
// ordered by count, then name.
func Tally(records []models.JobRecord) []Count {
	counts := make(map[string]int)
	total := 0
	for _, rec := range records {
		for _, kind := range strings.Split(rec.EmploymentType, ", ") {
			kind = strings.TrimSpace(kind)
			if kind == "" {
				continue
			}
			counts[kind]++
			total++
		}
	}

	out := make([]Count, 0, len(counts))
	for kind, n := range counts {
		out = append(out, Count{Type: kind, Count: n, Percent: float64(n) / float64(total) * 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

var labels = map[string]map[string]string{
	"en": {
		"title":  "Distribution of employment types",
		"type":   "Type of employment",
		"amount": "Amount of jobs",
		"share":  "Share",
		"total":  "Total",
	},
	"de": {
		"title":  "Verteilung der Beschäftigungsarten",
		"type":   "Art der Beschäftigung",
		"amount": "Anzahl der Stellenangebote",
		"share":  "Anteil",
		"total":  "Gesamt",
	},
}

func label(locale, key string) string {
	if l, ok := labels[locale]; ok {
		return l[key]
	}
	return labels["en"][key]
}

// Render writes counts as a table titled in locale ("en" or "de"; anything
// else falls back to "en").
func Render(w io.Writer, counts []Count, locale string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(label(locale, "title"))
	t.AppendHeader(table.Row{label(locale, "type"), label(locale, "amount"), label(locale, "share")})

	total := 0
	for _, c := range counts {
		t.AppendRow(table.Row{c.Type, c.Count, fmt.Sprintf("%.1f%%", c.Percent)})
		total += c.Count
	}
	t.AppendFooter(table.Row{label(locale, "total"), total, ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()
}

// Package karriere holds what the harvester knows about the karriere.at job
// board: its listing URLs, how record IDs are encoded and the selectors of
// the rendered listing.
package karriere

import (
	"net/url"
	"strconv"
	"strings"

	"karriere-harvester/internal/models"
)

// BaseURL is the root of the listing surface.
const BaseURL = "https://www.karriere.at/jobs"

// BuildURL returns the listing URL for one term and an optional location.
// Path segments are lower-cased with spaces replaced by hyphens.
func BuildURL(base, term, location string) string {
	out := strings.TrimRight(base, "/") + "/" + slug(term)
	if strings.TrimSpace(location) != "" {
		out += "/" + slug(location)
	}
	return out
}

// BuildTargets expands terms x locations into crawl targets, terms outermost.
// Without locations each term yields one location-less target.
func BuildTargets(base string, terms, locations []string) []models.CrawlTarget {
	var targets []models.CrawlTarget
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		if len(locations) == 0 {
			targets = append(targets, models.CrawlTarget{Term: term, URL: BuildURL(base, term, "")})
			continue
		}
		for _, loc := range locations {
			targets = append(targets, models.CrawlTarget{Term: term, Location: loc, URL: BuildURL(base, term, loc)})
		}
	}
	return targets
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// ExtractID returns the record ID encoded in a detail URL: the text after the
// last '#', or the trailing path segment when there is no fragment.
func ExtractID(rawURL string) string {
	if i := strings.LastIndex(rawURL, "#"); i >= 0 {
		return strings.TrimSpace(rawURL[i+1:])
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	} else if i := strings.IndexAny(path, "?"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// CanonicalURL rebuilds the stable detail URL of a record.
func CanonicalURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + id
}

// ParseDeclaredTotal reads the record count leading the listing header,
// e.g. "1.234 Jobs" -> 1234. Thousands separators (dot, comma, apostrophe,
// no-break and thin spaces) are dropped. Unparsable input yields 0.
func ParseDeclaredTotal(header string) int {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(header) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '.' || r == ',' || r == '\'' || r == '\u00a0' || r == '\u2009' || r == '\u202f':
		default:
			return parseDigits(digits.String())
		}
	}
	return parseDigits(digits.String())
}

func parseDigits(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

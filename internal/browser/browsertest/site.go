package browsertest

import (
	"context"
	"fmt"
	"strings"

	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/karriere"
)

// Job is one listing row of a fake Site.
type Job struct {
	ID             string
	Title          string
	Company        string
	Location       string
	EmploymentType string
	Salary         string
	Experience     string

	// PathID reports the ID as a trailing path segment instead of a fragment.
	PathID bool
	// NoTitle renders the row without its title link.
	NoTitle bool
	// ClickErr fails clicks on the title.
	ClickErr error
}

// Listing is the content behind one listing URL.
type Listing struct {
	Jobs []Job
	// Header overrides the "<n> Jobs" header text.
	Header string
	// StuckLoadMore keeps the button visible but reveals nothing.
	StuckLoadMore bool
	// Rerender replaces every row node on load more, staling old handles.
	Rerender bool
	// NavigateErr fails navigation to this listing.
	NavigateErr error
}

// Site is a fake job board served to every page it launches.
type Site struct {
	Base     string
	PageSize int
	Listings map[string]*Listing

	Consent       bool
	Overlay       bool
	NoSearchInput bool
	LaunchErr     error

	Launches        []browser.Options
	Pages           []*Page
	ConsentRejected bool
}

// NewSite returns a site rooted at karriere.BaseURL with pages of size.
func NewSite(pageSize int) *Site {
	return &Site{
		Base:     karriere.BaseURL,
		PageSize: pageSize,
		Listings: map[string]*Listing{},
	}
}

// Add registers a listing under the URL of (term, location).
func (s *Site) Add(term, location string, l *Listing) *Site {
	s.Listings[karriere.BuildURL(s.Base, term, location)] = l
	return s
}

// Launch implements browser.Launcher.
func (s *Site) Launch(ctx context.Context, opts browser.Options) (browser.Engine, error) {
	s.Launches = append(s.Launches, opts)
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	p := NewPage()
	p.NavigateFunc = s.render
	s.Pages = append(s.Pages, p)
	return p, nil
}

func (s *Site) render(ctx context.Context, p *Page, url string) error {
	if strings.TrimRight(url, "/") == strings.TrimRight(s.Base, "/") {
		s.renderRoot(p)
		return nil
	}
	l, ok := s.Listings[url]
	if !ok {
		// unknown listings render an empty result page
		l = &Listing{Header: "0 Jobs"}
	}
	if l.NavigateErr != nil {
		return l.NavigateErr
	}
	s.renderListing(p, url, l)
	return nil
}

func (s *Site) renderRoot(p *Page) {
	root := p.Root()
	if !s.NoSearchInput {
		input := El(karriere.IDSearchInput)
		input.Tag = "input"
		root.Append(input)
	}
	if s.Consent {
		banner := El("onetrust-banner-sdk")
		reject := El(karriere.IDConsentReject).WithText("Ablehnen")
		reject.Tag = "button"
		reject.OnClick = func(context.Context, *Node) error {
			s.ConsentRejected = true
			banner.Detach()
			return nil
		}
		root.Append(banner.Append(reject))
	}
}

func (s *Site) renderListing(p *Page, url string, l *Listing) {
	root := p.Root()
	header := l.Header
	if header == "" {
		header = fmt.Sprintf("%d Jobs", len(l.Jobs))
	}
	root.Append(El("", karriere.ClassListHeader).WithText(header))

	container := El("", karriere.ClassResultsContainer)
	root.Append(container)

	revealed := s.reveal(0, len(l.Jobs))
	for _, job := range l.Jobs[:revealed] {
		container.Append(s.row(p, url, job))
	}

	if s.Overlay {
		root.Append(El("", karriere.ClassOverlay).WithText("Jobalarm"))
	}
	if revealed >= len(l.Jobs) && !l.StuckLoadMore {
		return
	}

	button := El("", karriere.ClassLoadMore).WithText("Mehr Jobs laden")
	button.Tag = "button"
	button.OnClick = func(context.Context, *Node) error {
		if l.StuckLoadMore {
			return nil
		}
		next := s.reveal(revealed, len(l.Jobs))
		if l.Rerender {
			for _, old := range container.Children() {
				old.Detach()
			}
			for _, job := range l.Jobs[:next] {
				container.Append(s.row(p, url, job))
			}
		} else {
			for _, job := range l.Jobs[revealed:next] {
				container.Append(s.row(p, url, job))
			}
		}
		revealed = next
		if revealed >= len(l.Jobs) {
			button.Detach()
		}
		return nil
	}
	root.Append(button)
}

func (s *Site) reveal(from, total int) int {
	if s.PageSize <= 0 {
		return total
	}
	return min(from+s.PageSize, total)
}

func (s *Site) row(p *Page, listingURL string, job Job) *Node {
	item := El("", karriere.ClassJobItem)
	if !job.NoTitle {
		title := El("", karriere.ClassJobTitle).WithText(job.Title)
		title.Tag = "a"
		title.ClickErr = job.ClickErr
		title.OnClick = func(context.Context, *Node) error {
			s.openDetail(p, listingURL, job)
			return nil
		}
		item.Append(title)
	}
	if job.Company != "" {
		item.Append(El("", karriere.ClassJobCompany).WithText(job.Company))
	}
	return item
}

func (s *Site) openDetail(p *Page, listingURL string, job Job) {
	if job.PathID {
		p.SetURL(strings.TrimRight(s.Base, "/") + "/" + job.ID)
	} else {
		p.SetURL(listingURL + "#" + job.ID)
	}
	for _, old := range p.Root().Children() {
		if old.HasClass(karriere.ClassDetailPanel) {
			old.Detach()
		}
	}
	panel := El("", karriere.ClassDetailPanel)
	for class, value := range map[string]string{
		karriere.ClassLocation:       job.Location,
		karriere.ClassEmploymentType: job.EmploymentType,
		karriere.ClassSalary:         job.Salary,
		karriere.ClassExperience:     job.Experience,
	} {
		if value != "" {
			panel.Append(El("", class).WithText(value))
		}
	}
	p.Root().Append(panel)
}

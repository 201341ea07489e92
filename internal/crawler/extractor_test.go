package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karriere-harvester/internal/browser/browsertest"
	"karriere-harvester/internal/karriere"
)

func detailPage(url string) (*browsertest.Page, *browsertest.Node, *browsertest.Node) {
	p := browsertest.NewPage()
	item := browsertest.El("", karriere.ClassJobItem)
	title := browsertest.El("", karriere.ClassJobTitle).WithText("Platform Engineer")
	title.OnClick = func(context.Context, *browsertest.Node) error {
		p.SetURL(url)
		p.Root().Append(browsertest.El("", karriere.ClassDetailPanel).Append(
			browsertest.El("", karriere.ClassLocation).WithText("Linz"),
			browsertest.El("", karriere.ClassEmploymentType).WithText("Vollzeit, Teilzeit"),
		))
		return nil
	}
	item.Append(title, browsertest.El("", karriere.ClassJobCompany).WithText(" Acme GmbH "))
	p.Root().Append(item)
	return p, item, title
}

func TestExtractReadsRowAndDetail(t *testing.T) {
	p, item, _ := detailPage(karriere.BaseURL + "/platform-engineer/linz#abc123")
	x := NewExtractor(testLayer(p), karriere.DefaultSelectors(), karriere.BaseURL)

	rec, err := x.Extract(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "abc123", rec.ID)
	assert.Equal(t, karriere.BaseURL+"/abc123", rec.URL)
	assert.Equal(t, "Platform Engineer", rec.Name)
	assert.Equal(t, "Acme GmbH", rec.Company)
	assert.Equal(t, "Linz", rec.Location)
	assert.Equal(t, "Vollzeit, Teilzeit", rec.EmploymentType)
	assert.Equal(t, "N/A", rec.Salary)
	assert.Equal(t, "N/A", rec.Experience)
}

func TestExtractFailures(t *testing.T) {
	sel := karriere.DefaultSelectors()

	t.Run("no title", func(t *testing.T) {
		p := browsertest.NewPage()
		item := browsertest.El("", karriere.ClassJobItem)
		p.Root().Append(item)
		_, err := NewExtractor(testLayer(p), sel, karriere.BaseURL).Extract(context.Background(), item)
		assert.ErrorIs(t, err, ErrNoTitle)
	})

	t.Run("click fails", func(t *testing.T) {
		p, item, title := detailPage(karriere.BaseURL + "#1")
		title.ClickErr = errors.New("element click intercepted")
		_, err := NewExtractor(testLayer(p), sel, karriere.BaseURL).Extract(context.Background(), item)
		assert.ErrorIs(t, err, title.ClickErr)
	})

	t.Run("url unreadable", func(t *testing.T) {
		p, item, _ := detailPage(karriere.BaseURL + "#1")
		p.CurrentURLErr = errors.New("target closed")
		_, err := NewExtractor(testLayer(p), sel, karriere.BaseURL).Extract(context.Background(), item)
		assert.ErrorIs(t, err, p.CurrentURLErr)
	})

	t.Run("empty id", func(t *testing.T) {
		p, item, _ := detailPage(karriere.BaseURL + "/go#")
		_, err := NewExtractor(testLayer(p), sel, karriere.BaseURL).Extract(context.Background(), item)
		assert.ErrorIs(t, err, ErrNoID)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		p, item, title := detailPage(karriere.BaseURL + "#1")
		title.OnClick = func(context.Context, *browsertest.Node) error { panic("driver crashed") }
		var err error
		assert.NotPanics(t, func() {
			_, err = NewExtractor(testLayer(p), sel, karriere.BaseURL).Extract(context.Background(), item)
		})
		assert.ErrorContains(t, err, "driver crashed")
	})
}

func TestExtractFallsBackWhenTitleHandleGoesStale(t *testing.T) {
	p, item, title := detailPage(karriere.BaseURL + "#xyz")
	click := title.OnClick
	title.OnClick = func(ctx context.Context, n *browsertest.Node) error {
		if err := click(ctx, n); err != nil {
			return err
		}
		n.Detach()
		item.Append(browsertest.El("", karriere.ClassJobTitle).WithText("Re-rendered"))
		return nil
	}
	rec, err := NewExtractor(testLayer(p), karriere.DefaultSelectors(), karriere.BaseURL).Extract(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "Re-rendered", rec.Name)
	assert.Equal(t, "xyz", rec.ID)
}

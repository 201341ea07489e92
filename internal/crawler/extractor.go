package crawler

import (
	"context"
	"errors"
	"fmt"

	"karriere-harvester/internal/access"
	"karriere-harvester/internal/browser"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/models"
)

var (
	// ErrNoTitle reports a list row without its title link.
	ErrNoTitle = errors.New("crawler: job title not found")
	// ErrNoID reports a detail URL that carries no record ID.
	ErrNoID = errors.New("crawler: job id missing from url")
)

// Extractor opens one list row and reads its record from the row and the
// detail panel.
type Extractor struct {
	layer *access.Layer
	sel   karriere.Selectors
	base  string
}

// NewExtractor returns an extractor building canonical URLs under base.
func NewExtractor(layer *access.Layer, sel karriere.Selectors, base string) *Extractor {
	return &Extractor{layer: layer, sel: sel, base: base}
}

// Extract opens item and returns its record. Panics inside the engine are
// returned as errors.
func (x *Extractor) Extract(ctx context.Context, item browser.Element) (rec models.JobRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract: panic: %v", r)
		}
	}()

	engine := x.layer.Engine()
	title, ok := x.layer.FindOne(ctx, x.sel.JobTitle, item, access.Immediate)
	if !ok {
		return models.JobRecord{}, ErrNoTitle
	}
	if err := engine.Click(ctx, title); err != nil {
		return models.JobRecord{}, fmt.Errorf("open job: %w", err)
	}

	// the panel may lag behind; missing fields fall back to defaults
	x.layer.FindOne(ctx, x.sel.DetailPanel, nil, access.Wait)

	name, err := engine.Text(ctx, title)
	if err != nil {
		name = x.layer.ReadText(ctx, x.sel.JobTitle, item, access.Immediate, access.DefaultText)
	}

	current, err := engine.CurrentURL(ctx)
	if err != nil {
		return models.JobRecord{}, fmt.Errorf("read job url: %w", err)
	}
	id := karriere.ExtractID(current)
	if id == "" {
		return models.JobRecord{}, fmt.Errorf("%w: %s", ErrNoID, current)
	}

	return models.JobRecord{
		Name:           name,
		ID:             id,
		URL:            karriere.CanonicalURL(x.base, id),
		Company:        x.layer.ReadText(ctx, x.sel.JobCompany, item, access.Immediate, access.DefaultText),
		Location:       x.layer.ReadText(ctx, x.sel.Location, nil, access.Immediate, access.DefaultText),
		EmploymentType: x.layer.ReadText(ctx, x.sel.EmploymentType, nil, access.Immediate, access.DefaultText),
		Salary:         x.layer.ReadText(ctx, x.sel.Salary, nil, access.Immediate, access.DefaultText),
		Experience:     x.layer.ReadText(ctx, x.sel.Experience, nil, access.Immediate, access.DefaultText),
	}, nil
}

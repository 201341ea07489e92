package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"karriere-harvester/internal/access"
	"karriere-harvester/internal/karriere"
	"karriere-harvester/internal/logger"
)

// ErrSurfaceUnusable reports that the root listing never showed its search
// input.
var ErrSurfaceUnusable = errors.New("crawler: root listing surface unusable")

// Bootstrap loads the root listing once per run, activates the page through
// the search input and rejects the consent prompt when it shows up.
func Bootstrap(ctx context.Context, layer *access.Layer, sel karriere.Selectors, rootURL string, settle time.Duration, log logger.Logger) error {
	engine := layer.Engine()
	if err := engine.Navigate(ctx, rootURL); err != nil {
		return fmt.Errorf("navigate to %s: %w", rootURL, err)
	}

	input, ok := layer.FindOne(ctx, sel.SearchInput, nil, access.Wait)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s not found", ErrSurfaceUnusable, sel.SearchInput)
	}
	if err := engine.Click(ctx, input); err != nil {
		return fmt.Errorf("activate search input: %w", err)
	}

	reject, ok := layer.FindOne(ctx, sel.ConsentReject, nil, access.Wait)
	if !ok {
		log.Info("Consent prompt not shown")
		return ctx.Err()
	}
	if err := engine.Click(ctx, reject); err != nil {
		log.Warn("Failed to reject consent", logger.Error(err))
		return nil
	}
	log.Info("Consent rejected")
	return sleep(ctx, settle)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

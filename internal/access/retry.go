package access

import (
	"context"
	"time"

	"karriere-harvester/internal/browser"
)

// RetryPolicy bounds how often an operation is re-run after a retryable
// error. The delay doubles after every attempt, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	// Retryable qualifies errors for another attempt; nil means staleness only.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries stale lookups three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Retryable:   browser.IsStale,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempt budget is spent. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = browser.IsStale
	}
	attempts := max(1, p.MaxAttempts)
	delay := p.Delay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) || attempt >= attempts {
			return err
		}
		if delay > 0 {
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
}

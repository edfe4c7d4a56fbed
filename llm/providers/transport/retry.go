package transport

import (
	"context"
	"time"
)

// RetryPolicy controls how failed calls are repeated.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries up to three times starting at one second.
func DefaultRetryPolicy(retryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
		Retryable:  retryable,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The delay doubles after each failure.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	delay := p.Backoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || p.Retryable == nil || !p.Retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
}

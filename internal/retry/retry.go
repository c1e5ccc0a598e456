// Package retry provides a bounded exponential-backoff retry combinator.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how an operation is retried. The zero value is not
// usable; construct policies explicitly so the bounds are visible at the
// call site.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration
	// Multiplier scales the backoff after every failed attempt.
	Multiplier float64
	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// Do runs fn under the policy, sleeping between attempts and honoring
// context cancellation. It returns nil on the first success, the last error
// once attempts are exhausted, or the context error if canceled while
// waiting.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		return fmt.Errorf("retry: policy attempts must be > 0")
	}

	backoff := p.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		case <-timer.C:
		}
		if p.Multiplier > 0 {
			backoff = time.Duration(float64(backoff) * p.Multiplier)
		}
	}
	return fmt.Errorf("retry exhausted after %d attempts: %w", p.Attempts, lastErr)
}

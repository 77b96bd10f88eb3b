package resilience

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below one are treated as one.
	MaxAttempts int
	// Delay is the pause between attempts.
	Delay time.Duration
	// Retryable reports whether an error is worth another attempt. A nil
	// Retryable makes every error fatal.
	Retryable func(err error) bool
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. Attempts never overlap.
//
// When attempts are exhausted the last error is returned wrapped, so
// errors.Is and errors.As still see the cause.
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return zero, err
			}
			return zero, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, ctx.Err())
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, ctx.Err())
		}
	}
}

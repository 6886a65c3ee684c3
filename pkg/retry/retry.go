package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy is a single retry policy shared by the model-call path and HTTP
// collaborators: max attempts, exponential backoff schedule, and a predicate
// deciding which errors are worth retrying.
type Policy struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffFactor float64
	// IsRetryable decides whether the error warrants another attempt.
	// A nil predicate retries nothing.
	IsRetryable func(error) bool
}

// DefaultPolicy retries up to 3 attempts with 1s/2s backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BackoffBase:   time.Second,
		BackoffFactor: 2.0,
	}
}

// HintedError lets errors carry a provider-supplied retry delay
// (e.g. a Retry-After header on a rate-limit response).
type HintedError interface {
	error
	RetryAfter() time.Duration
}

// Backoff returns the delay before the given attempt (0-based retry count).
// A provider hint on the error takes precedence over the schedule.
func (p Policy) Backoff(attempt int, err error) time.Duration {
	if hinted, ok := err.(HintedError); ok {
		if d := hinted.RetryAfter(); d > 0 {
			return d
		}
	}
	d := float64(p.BackoffBase)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffFactor
	}
	return time.Duration(d)
}

// Do runs fn, retrying retryable failures within the policy's attempt budget.
// Non-retryable errors propagate immediately.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := p.Backoff(attempt-1, lastErr)
			log.Debug().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("retry: backing off before next attempt")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if p.IsRetryable == nil || !p.IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

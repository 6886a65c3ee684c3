package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func transientOnly(err error) bool { return errors.Is(err, errTransient) }

func TestDoRetriesRetryableErrors(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffFactor: 2, IsRetryable: transientOnly}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := Policy{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffFactor: 2, IsRetryable: transientOnly}
	calls := 0
	fatal := errors.New("fatal")
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, fatal, err)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffFactor: 2, IsRetryable: transientOnly}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})
	assert.Equal(t, 3, calls)
	assert.Equal(t, errTransient, err)
}

func TestDefaultPolicyRetriesNothingWithoutPredicate(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, errTransient, err)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Minute, BackoffFactor: 2, IsRetryable: transientOnly}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(ctx context.Context) error {
		return errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
}

type hinted struct{ after time.Duration }

func (h *hinted) Error() string             { return "rate limited" }
func (h *hinted) RetryAfter() time.Duration { return h.after }

func TestBackoffSchedule(t *testing.T) {
	p := Policy{BackoffBase: time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.Backoff(0, errTransient))
	assert.Equal(t, 2*time.Second, p.Backoff(1, errTransient))
	assert.Equal(t, 4*time.Second, p.Backoff(2, errTransient))
}

func TestBackoffPrefersProviderHint(t *testing.T) {
	p := Policy{BackoffBase: time.Second, BackoffFactor: 2}
	assert.Equal(t, 30*time.Second, p.Backoff(0, &hinted{after: 30 * time.Second}))
	// A zero hint falls back to the schedule.
	assert.Equal(t, time.Second, p.Backoff(0, &hinted{}))
}

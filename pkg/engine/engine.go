package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// Engine is a model inference provider. It appends the model's response
// blocks (assistant text and/or tool calls) to the Turn and records a stop
// reason in the Turn metadata. Engines never execute tools.
type Engine interface {
	RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error)
}

// ProviderError wraps a model/network failure with the operation that caused
// it. Rate-limit conditions are retried by the engine itself; everything else
// propagates as a ProviderError.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error during %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimitError marks a rate-limited provider response. It carries the
// provider-supplied retry hint when one was present.
type RateLimitError struct {
	Err  error
	Hint time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter implements retry.HintedError.
func (e *RateLimitError) RetryAfter() time.Duration { return e.Hint }

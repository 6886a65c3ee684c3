package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/mangiafuoco/pkg/events"
)

// Call is one operation invocation requested by the model.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Result is the outcome of executing one call. Either Value or Err is set.
type Result struct {
	CallID   string
	Value    any
	Err      *ToolError
	Duration time.Duration
}

// Content renders the result as the string fed back into the conversation.
func (r Result) Content() string {
	if r.Err != nil {
		b, err := json.Marshal(r.Err)
		if err != nil {
			return fmt.Sprintf("Error: %s", r.Err.Message)
		}
		return fmt.Sprintf("Error: %s", string(b))
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%v", r.Value)
	}
	return string(b)
}

// Executor runs operation calls against a catalog. Calls within one model
// turn execute concurrently (parallel I/O, not parallel mutation) with a
// bounded window; results come back in call order.
type Executor struct {
	MaxParallel int
}

// NewExecutor creates an executor with the given concurrency window.
func NewExecutor(maxParallel int) *Executor {
	if maxParallel <= 0 {
		maxParallel = 3
	}
	return &Executor{MaxParallel: maxParallel}
}

// ExecuteCalls runs all calls and reassembles results in call order. Failures
// are per-call structured errors, never a panic of the whole batch: the model
// gets to see exactly which call went wrong.
func (e *Executor) ExecuteCalls(ctx context.Context, calls []Call, catalog *Catalog) []Result {
	if len(calls) == 0 {
		return nil
	}
	results := make([]Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.MaxParallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.executeCall(gctx, call, catalog)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) executeCall(ctx context.Context, call Call, catalog *Catalog) Result {
	start := time.Now()
	meta := events.EventMetadata{}
	events.PublishEventToContext(ctx, events.NewToolCallEvent(meta, call.ID, call.Name, string(call.Arguments)))

	res := e.runCall(ctx, call, catalog)
	res.Duration = time.Since(start)

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Message
	}
	events.PublishEventToContext(ctx, events.NewToolResultEvent(meta, call.ID, res.Content(), errMsg))

	log.Debug().
		Str("operation", call.Name).
		Str("call_id", call.ID).
		Dur("duration", res.Duration).
		Bool("failed", res.Err != nil).
		Msg("operation call executed")
	return res
}

func (e *Executor) runCall(ctx context.Context, call Call, catalog *Catalog) Result {
	def, ok := catalog.Get(call.Name)
	if !ok {
		return Result{
			CallID: call.ID,
			Err: &ToolError{
				ToolName: call.Name,
				CallID:   call.ID,
				Type:     ErrTypeNotFound,
				Message:  fmt.Sprintf("unknown operation %q", call.Name),
			},
		}
	}
	value, err := def.Execute(ctx, call.Arguments)
	if err != nil {
		if terr, ok := err.(*ToolError); ok {
			terr.CallID = call.ID
			return Result{CallID: call.ID, Err: terr}
		}
		return Result{
			CallID: call.ID,
			Err: &ToolError{
				ToolName: call.Name,
				CallID:   call.ID,
				Type:     ErrTypeExecution,
				Message:  err.Error(),
			},
		}
	}
	return Result{CallID: call.ID, Value: value}
}

// Package orchestrator drives the build conversation: the model chooses which
// operations to call, the orchestrator executes them, tracks run-level state
// and enforces completion deterministically. The model can stall, repeat
// itself or emit garbage; the run still converges or fails with a bounded,
// explainable error.
package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/go-go-golems/mangiafuoco/pkg/engine"
	"github.com/go-go-golems/mangiafuoco/pkg/operations"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
	// StatusNeedsConfirmation suspends the run awaiting a user reply; resume
	// with Resume.
	StatusNeedsConfirmation Status = "needs_confirmation"
)

// RunResult is what a run hands back to the caller.
type RunResult struct {
	Status       Status
	ArtifactID   string
	ArtifactPath string
	ItemCount    int
	SentToDevice string
	PublishedID  string
	// PublishError is reported but never fails the run.
	PublishError string
	// Question is set for StatusNeedsConfirmation.
	Question string
	Error    string
	Turns    int
}

// runState is the per-run bookkeeping the orchestrator owns exclusively.
type runState struct {
	turns           int
	nudges          int
	resolveFailures int
	acquiredItems   []string
	artifactID      string
	artifactPath    string
	itemCount       int
	verified        bool
	verifyFailures  int
	sentTo          string
	publishedID     string
	publishErr      string
	resolveCache    map[string]tools.Result
}

// Orchestrator runs one resolved request to completion. One instance per run;
// it owns the run state across a confirmation suspension.
type Orchestrator struct {
	eng          engine.Engine
	svc          *operations.Service
	catalog      *tools.Catalog
	executor     *tools.Executor
	requirements []playlist.Requirement
	settings     playlist.Settings

	maxTurns          int
	maxVerifyFailures int
	interactive       bool

	state runState
}

type Option func(*Orchestrator)

// WithMaxTurns bounds the number of model turns for the whole run.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithInteractive enables the confirmation loop: when the model asks a yes/no
// question the run suspends instead of failing.
func WithInteractive(enabled bool) Option {
	return func(o *Orchestrator) { o.interactive = enabled }
}

// New creates an orchestrator for one resolved request.
func New(eng engine.Engine, svc *operations.Service, catalog *tools.Catalog, requirements []playlist.Requirement, settings playlist.Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		eng:               eng,
		svc:               svc,
		catalog:           catalog,
		executor:          tools.NewExecutor(3),
		requirements:      requirements,
		settings:          settings,
		maxTurns:          20,
		maxVerifyFailures: 3,
		state:             runState{resolveCache: map[string]tools.Result{}},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

const curatorSystemPrompt = `You are a playlist curation agent. You cannot see or touch media objects directly: you work through the provided operations and the opaque ids they return.

Work through this sequence:
1. Call resolve_requirement once for each requirement to acquire items.
2. Call build with the acquired item ids.
3. Call verify with the returned artifactId. If verification fails, fix the problem and build again.
4. If a device is named in the settings, call send_to_device after a successful verify.
5. If a feed server is named, call publish with the persisted file path.

Only use item ids returned by operations. Never invent ids. Report what you did in one short sentence when everything is finished.`

// SeedTurn builds the opening conversation for a run from the resolved
// requirements and settings.
func SeedTurn(requirements []playlist.Requirement, settings playlist.Settings) *turns.Turn {
	payload, _ := json.Marshal(map[string]any{
		"requirements": requirements,
		"settings":     settings,
	})
	return turns.NewSeedTurn(curatorSystemPrompt, "Resolved request:\n"+string(payload))
}

// looksLikeConfirmation reports whether assistant text reads as a yes/no
// question aimed at the user.
func looksLikeConfirmation(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasSuffix(t, "?") {
		return false
	}
	for _, marker := range []string{"should i", "do you want", "shall i", "confirm", "proceed", "ok to", "is that right", "would you like"} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// Package intent turns a free-form user request into a structured Resolution:
// a requirement set plus playlist settings, or a send/publish instruction for
// an existing playlist file. The model drives the conversation but can only
// end it through a terminal payload tool; the resolver validates the payload
// and applies configuration defaults before anything downstream runs.
package intent

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/engine"
	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/session"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// Kind tags what the resolved intent asks for.
type Kind string

const (
	// KindRequirements is a build request: acquire items, build, verify.
	KindRequirements Kind = "requirements"
	// KindSend asks to send an existing playlist file to a device.
	KindSend Kind = "send"
	// KindPublish asks to publish an existing playlist file to a feed server.
	KindPublish Kind = "publish"
)

// Resolution is the structured outcome of intent resolution.
type Resolution struct {
	Kind         Kind
	Requirements []playlist.Requirement
	Settings     playlist.Settings
	// FilePath is set for send and publish intents.
	FilePath string
	// FeedServerName is the configured server named by a publish intent.
	FeedServerName string
}

// Asker prompts the user with a clarifying question and returns the reply.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Resolver runs the intent resolution state machine over one session.
type Resolver struct {
	eng      engine.Engine
	catalog  *tools.Catalog
	executor *tools.Executor
	defaults playlist.Defaults
	asker    Asker

	maxLookupDepth int
	maxTurns       int
}

type Option func(*Resolver)

// WithAsker makes the resolver interactive: clarifying questions go to the
// asker and the reply resumes the conversation.
func WithAsker(a Asker) Option {
	return func(r *Resolver) { r.asker = a }
}

func WithDefaults(d playlist.Defaults) Option {
	return func(r *Resolver) { r.defaults = d }
}

// WithMaxLookupDepth bounds how many chained lookup turns the model gets
// before the resolution is forced to fail.
func WithMaxLookupDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxLookupDepth = n
		}
	}
}

// NewResolver creates a resolver over the given engine and catalog. The
// catalog must contain the lookup operations and the terminal payload tools.
func NewResolver(eng engine.Engine, catalog *tools.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		eng:            eng,
		catalog:        catalog,
		executor:       tools.NewExecutor(3),
		maxLookupDepth: 3,
		maxTurns:       12,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve drives the conversation until the model emits a terminal payload.
// Lookup calls are executed synchronously and fed back; turns with neither a
// lookup nor a terminal payload are treated as clarifying questions.
func (r *Resolver) Resolve(ctx context.Context, sess *session.Session) (*Resolution, error) {
	sess.Turn.SetData(turns.KeyToolCatalog, r.catalog)
	lookupDepth := 0

	for i := 0; i < r.maxTurns; i++ {
		updated, err := r.eng.RunInference(ctx, sess.Turn)
		if err != nil {
			return nil, errors.Wrap(err, "intent resolution inference")
		}
		sess.Advance(updated)

		pending := turns.ExtractPendingToolCalls(updated)
		if terminal := r.findTerminal(pending); terminal != nil {
			resolution, err := r.parseTerminal(*terminal)
			if err == nil {
				log.Info().
					Str("kind", string(resolution.Kind)).
					Int("requirements", len(resolution.Requirements)).
					Int("turns", sess.Iterations).
					Msg("intent resolved")
				return resolution, nil
			}
			var rve *RequirementValidationError
			if errors.As(err, &rve) && r.asker != nil {
				// Recoverable interactively: answer any sibling calls from the
				// same turn first (the provider rejects an assistant message
				// whose tool calls have no responses), then tell the model what
				// was wrong and let it re-emit the payload.
				r.runLookups(ctx, sess, siblingCalls(pending, terminal.ID))
				sess.AppendBlocks(
					turns.NewToolUseBlock(terminal.ID, map[string]any{"error": rve.Error()}),
					turns.NewUserTextBlock("The request was incomplete: "+rve.Error()+". Please fix it and finish again."),
				)
				continue
			}
			return nil, err
		}

		if len(pending) > 0 {
			lookupDepth++
			if lookupDepth > r.maxLookupDepth {
				return nil, errors.Errorf("intent resolution exceeded %d chained lookups", r.maxLookupDepth)
			}
			r.runLookups(ctx, sess, pending)
			continue
		}

		question, _ := turns.LastAssistantText(updated)
		events.PublishEventToContext(ctx, events.New(events.EventTypeClarification,
			events.EventMetadata{TurnID: sess.Turn.ID},
			map[string]any{"question": question}))
		if r.asker == nil {
			return nil, &NeedsClarificationError{Question: question}
		}
		reply, err := r.asker.Ask(ctx, question)
		if err != nil {
			return nil, errors.Wrap(err, "clarification declined")
		}
		sess.AppendBlocks(turns.NewUserTextBlock(reply))
	}
	return nil, errors.Errorf("intent resolution did not terminate within %d turns", r.maxTurns)
}

func (r *Resolver) findTerminal(pending []turns.PendingToolCall) *turns.PendingToolCall {
	for i, call := range pending {
		if def, ok := r.catalog.Get(call.Name); ok && def.Terminal {
			return &pending[i]
		}
	}
	return nil
}

// siblingCalls filters out the terminal call so the rest of a mixed turn can
// be executed normally.
func siblingCalls(pending []turns.PendingToolCall, terminalID string) []turns.PendingToolCall {
	out := make([]turns.PendingToolCall, 0, len(pending))
	for _, p := range pending {
		if p.ID != terminalID {
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) runLookups(ctx context.Context, sess *session.Session, pending []turns.PendingToolCall) {
	calls := make([]tools.Call, 0, len(pending))
	for _, p := range pending {
		raw, err := json.Marshal(p.Arguments)
		if err != nil {
			raw = json.RawMessage("{}")
		}
		calls = append(calls, tools.Call{ID: p.ID, Name: p.Name, Arguments: raw})
	}
	results := r.executor.ExecuteCalls(ctx, calls, r.catalog)
	for _, res := range results {
		sess.AppendBlocks(turns.NewToolUseBlock(res.CallID, res.Content()))
	}
}

func (r *Resolver) parseTerminal(call turns.PendingToolCall) (*Resolution, error) {
	raw, err := json.Marshal(call.Arguments)
	if err != nil {
		return nil, &RequirementValidationError{Index: -1, Cause: err}
	}
	switch call.Name {
	case TerminalFinalizeRequirements:
		return r.parseFinalize(raw)
	case TerminalConfirmSend:
		var p sendPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RequirementValidationError{Index: -1, Cause: err}
		}
		if p.FilePath == "" {
			return nil, &RequirementValidationError{Index: -1, Cause: errors.New("send needs a playlist file path")}
		}
		return &Resolution{
			Kind:     KindSend,
			FilePath: p.FilePath,
			Settings: playlist.Settings{DeviceName: p.DeviceName},
		}, nil
	case TerminalConfirmPublish:
		var p publishPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RequirementValidationError{Index: -1, Cause: err}
		}
		if p.FilePath == "" {
			return nil, &RequirementValidationError{Index: -1, Cause: errors.New("publish needs a playlist file path")}
		}
		return &Resolution{
			Kind:           KindPublish,
			FilePath:       p.FilePath,
			FeedServerName: p.FeedServer,
		}, nil
	}
	return nil, errors.Errorf("unknown terminal payload %q", call.Name)
}

func (r *Resolver) parseFinalize(raw json.RawMessage) (*Resolution, error) {
	var p finalizePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RequirementValidationError{Index: -1, Cause: err}
	}
	if len(p.Requirements) == 0 {
		return nil, &RequirementValidationError{Index: -1, Cause: errors.New("no requirements in payload")}
	}
	for i := range p.Requirements {
		if err := p.Requirements[i].Validate(); err != nil {
			return nil, &RequirementValidationError{Index: i, Cause: err}
		}
		p.Requirements[i].ApplyDefaults()
	}

	settings := playlist.Settings{
		Title:           p.Title,
		Slug:            p.Slug,
		DurationPerItem: p.DurationPerItem,
		DeviceName:      p.DeviceName,
	}
	if p.PreserveOrder != nil {
		settings.PreserveOrder = *p.PreserveOrder
	} else {
		settings.PreserveOrder = r.defaults.PreserveOrder
	}
	if p.FeedServer != "" {
		settings.FeedServer = &playlist.FeedServer{Name: p.FeedServer}
	}
	settings.ApplyDefaults(r.defaults)

	return &Resolution{
		Kind:         KindRequirements,
		Requirements: p.Requirements,
		Settings:     settings,
	}, nil
}

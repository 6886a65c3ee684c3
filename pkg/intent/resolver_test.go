package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mangiafuoco/pkg/operations"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
	"github.com/go-go-golems/mangiafuoco/pkg/session"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// scriptedEngine replays a fixed sequence of model turns.
type scriptedEngine struct {
	steps []func(t *turns.Turn)
	calls int
}

func (e *scriptedEngine) RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	out := t.Clone()
	if e.calls < len(e.steps) {
		e.steps[e.calls](out)
	}
	e.calls++
	return out, nil
}

func newLookupCatalog(t *testing.T) *tools.Catalog {
	t.Helper()
	svc := operations.New(operations.Config{
		Devices:     []operations.DeviceInfo{{Name: "living-room"}},
		FeedServers: []playlist.FeedServer{{Name: "main", BaseURL: "https://feed.example.com"}},
	}, registry.New())
	catalog := tools.NewCatalog()
	operations.RegisterLookupOps(catalog, svc)
	RegisterTerminalOps(catalog)
	return catalog
}

func seedSession(prompt string) *session.Session {
	return session.New(turns.NewSeedTurn("resolve the playlist request", prompt))
}

func finalizeCall(id string, args map[string]any) func(t *turns.Turn) {
	return func(t *turns.Turn) {
		turns.AppendBlock(t, turns.NewToolCallBlock(id, TerminalFinalizeRequirements, args))
	}
}

func TestResolveImmediateTerminal(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		finalizeCall("call-1", map[string]any{
			"requirements": []map[string]any{
				{"type": "fetch_feed", "playlistName": "Social Codes"},
			},
			"title":      "Evening Mix",
			"deviceName": "living-room",
		}),
	}}
	r := NewResolver(eng, newLookupCatalog(t), WithDefaults(playlist.Defaults{DurationPerItem: 45}))

	res, err := r.Resolve(context.Background(), seedSession("play social codes on my device"))
	require.NoError(t, err)
	assert.Equal(t, KindRequirements, res.Kind)
	require.Len(t, res.Requirements, 1)
	// Feed fetches default to 5 items, duration comes from configuration.
	assert.Equal(t, playlist.Exact(5), res.Requirements[0].Quantity)
	assert.Equal(t, 45, res.Settings.DurationPerItem)
	assert.Equal(t, "living-room", res.Settings.DeviceName)
	assert.Equal(t, "Evening Mix", res.Settings.Title)
}

func TestResolveLookupThenTerminal(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		func(tn *turns.Turn) {
			turns.AppendBlock(tn, turns.NewToolCallBlock("call-1", operations.OpListDevices, map[string]any{}))
		},
		finalizeCall("call-2", map[string]any{
			"requirements": []map[string]any{
				{"type": "query_address", "ownerAddress": "alice.eth", "quantity": "all"},
			},
			"deviceName": "living-room",
		}),
	}}
	r := NewResolver(eng, newLookupCatalog(t))
	sess := seedSession("show alice's collection on my device")

	res, err := r.Resolve(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, KindRequirements, res.Kind)
	assert.True(t, res.Requirements[0].Quantity.All)

	// The lookup result was appended to the conversation before the second turn.
	var sawToolUse bool
	for _, b := range sess.Turn.Blocks {
		if b.Kind == turns.BlockKindToolUse {
			sawToolUse = true
		}
	}
	assert.True(t, sawToolUse)
}

func TestResolveLookupDepthExceeded(t *testing.T) {
	lookup := func(id string) func(tn *turns.Turn) {
		return func(tn *turns.Turn) {
			turns.AppendBlock(tn, turns.NewToolCallBlock(id, operations.OpListDevices, map[string]any{}))
		}
	}
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		lookup("c1"), lookup("c2"), lookup("c3"), lookup("c4"),
	}}
	r := NewResolver(eng, newLookupCatalog(t), WithMaxLookupDepth(3))

	_, err := r.Resolve(context.Background(), seedSession("hm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chained lookups")
}

func TestResolveClarificationNonInteractive(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		func(tn *turns.Turn) {
			turns.AppendBlock(tn, turns.NewAssistantTextBlock("Which device did you mean?"))
		},
	}}
	r := NewResolver(eng, newLookupCatalog(t))

	_, err := r.Resolve(context.Background(), seedSession("send it somewhere"))
	var nce *NeedsClarificationError
	require.ErrorAs(t, err, &nce)
	assert.Contains(t, nce.Question, "Which device")
}

type fakeAsker struct {
	replies []string
	asked   []string
}

func (f *fakeAsker) Ask(ctx context.Context, question string) (string, error) {
	f.asked = append(f.asked, question)
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func TestResolveClarificationInteractive(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		func(tn *turns.Turn) {
			turns.AppendBlock(tn, turns.NewAssistantTextBlock("How many items?"))
		},
		finalizeCall("call-2", map[string]any{
			"requirements": []map[string]any{
				{"type": "fetch_feed", "playlistName": "Social Codes", "quantity": 3},
			},
		}),
	}}
	asker := &fakeAsker{replies: []string{"three"}}
	r := NewResolver(eng, newLookupCatalog(t), WithAsker(asker))

	res, err := r.Resolve(context.Background(), seedSession("play social codes"))
	require.NoError(t, err)
	assert.Equal(t, playlist.Exact(3), res.Requirements[0].Quantity)
	assert.Equal(t, []string{"How many items?"}, asker.asked)
}

func TestResolveMixedLookupAndInvalidTerminal(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		func(tn *turns.Turn) {
			turns.AppendBlock(tn, turns.NewToolCallBlock("c1", operations.OpListDevices, map[string]any{}))
			turns.AppendBlock(tn, turns.NewToolCallBlock("c2", TerminalFinalizeRequirements, map[string]any{
				"requirements": []map[string]any{{"type": "query_address"}},
			}))
		},
		finalizeCall("c3", map[string]any{
			"requirements": []map[string]any{
				{"type": "query_address", "ownerAddress": "alice.eth"},
			},
		}),
	}}
	asker := &fakeAsker{}
	r := NewResolver(eng, newLookupCatalog(t), WithAsker(asker))
	sess := seedSession("show alice's collection")

	res, err := r.Resolve(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, KindRequirements, res.Kind)

	// Both calls from the mixed turn were answered; only the accepted terminal
	// call stays open, so the provider never sees an unanswered tool call.
	pending := turns.ExtractPendingToolCalls(sess.Turn)
	require.Len(t, pending, 1)
	assert.Equal(t, "c3", pending[0].ID)
	assert.Empty(t, asker.asked)
}

func TestResolveInvalidRequirementFails(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		finalizeCall("call-1", map[string]any{
			"requirements": []map[string]any{
				{"type": "query_address"},
			},
		}),
	}}
	r := NewResolver(eng, newLookupCatalog(t))

	_, err := r.Resolve(context.Background(), seedSession("broken"))
	var rve *RequirementValidationError
	require.ErrorAs(t, err, &rve)
	assert.Equal(t, 0, rve.Index)
}

func TestResolveSendIntent(t *testing.T) {
	eng := &scriptedEngine{steps: []func(t *turns.Turn){
		func(tn *turns.Turn) {
			turns.AppendBlock(tn, turns.NewToolCallBlock("call-1", TerminalConfirmSend, map[string]any{
				"filePath":   "/tmp/playlist.json",
				"deviceName": "living-room",
			}))
		},
	}}
	r := NewResolver(eng, newLookupCatalog(t))

	res, err := r.Resolve(context.Background(), seedSession("send the playlist file to my device"))
	require.NoError(t, err)
	assert.Equal(t, KindSend, res.Kind)
	assert.Equal(t, "/tmp/playlist.json", res.FilePath)
	assert.Equal(t, "living-room", res.Settings.DeviceName)
}

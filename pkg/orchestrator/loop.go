package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/operations"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/session"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// Run drives the conversation until the run is done, failed or suspended on a
// confirmation question. The returned error is non-nil exactly when the run
// failed; the RunResult is always populated.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session) (*RunResult, error) {
	sess.Turn.SetData(turns.KeyToolCatalog, o.catalog)
	events.PublishEventToContext(ctx, events.New(events.EventTypeRunStart,
		o.eventMeta(sess), map[string]any{"requirements": len(o.requirements)}))
	return o.loop(ctx, sess)
}

// Resume continues a run suspended with StatusNeedsConfirmation, appending
// the user's reply as a new conversation turn.
func (o *Orchestrator) Resume(ctx context.Context, sess *session.Session, reply string) (*RunResult, error) {
	sess.AppendBlocks(turns.NewUserTextBlock(reply))
	return o.loop(ctx, sess)
}

func (o *Orchestrator) loop(ctx context.Context, sess *session.Session) (*RunResult, error) {
	for {
		o.state.turns++
		if o.state.turns > o.maxTurns {
			return o.fail(ctx, sess, errors.Errorf("run exceeded %d model turns", o.maxTurns))
		}

		updated, err := o.eng.RunInference(ctx, sess.Turn)
		if err != nil {
			events.PublishEventToContext(ctx, events.NewErrorEvent(o.eventMeta(sess), err))
			return o.fail(ctx, sess, errors.Wrap(err, "inference"))
		}
		sess.Advance(updated)
		// Tool choice directives are one-shot.
		delete(sess.Turn.Data, turns.KeyToolChoice)
		log.Debug().
			Int("turn", o.state.turns).
			Int("token_estimate", sess.TokenEstimate()).
			Msg("orchestrator turn")
		if tr := log.Trace(); tr.Enabled() {
			dump, _ := turns.DumpYAML(sess.Turn)
			tr.Str("transcript", dump).Msg("conversation state")
		}

		if stop, _ := updated.Metadata[turns.KeyStopReason].(string); stop == turns.StopReasonMalformedToolCall {
			result, done, err := o.recoverMalformed(ctx, sess)
			if done {
				return result, err
			}
			continue
		}

		pending := turns.ExtractPendingToolCalls(updated)
		if len(pending) == 0 {
			result, done, err := o.handleQuietTurn(ctx, sess, updated)
			if done {
				return result, err
			}
			continue
		}

		if result, done, err := o.processCalls(ctx, sess, pending); done {
			return result, err
		}
	}
}

// handleQuietTurn deals with a model turn that requested no operations:
// completion enforcement, confirmation suspension, stall recovery or a nudge.
func (o *Orchestrator) handleQuietTurn(ctx context.Context, sess *session.Session, updated *turns.Turn) (*RunResult, bool, error) {
	if o.state.artifactID != "" && o.state.verified {
		result, err := o.finish(ctx, sess)
		return result, true, err
	}

	text, _ := turns.LastAssistantText(updated)
	if o.interactive && looksLikeConfirmation(text) {
		return &RunResult{
			Status:   StatusNeedsConfirmation,
			Question: text,
			Turns:    o.state.turns,
		}, true, nil
	}

	if len(o.state.acquiredItems) > 0 && o.state.artifactID == "" {
		// The model acquired items and then stopped. Force the build.
		events.PublishEventToContext(ctx, events.New(events.EventTypeStallRecovery,
			o.eventMeta(sess), map[string]any{"reason": "no_build_after_acquisition"}))
		log.Warn().Int("items", len(o.state.acquiredItems)).Msg("stall: acquired items but no build, injecting directive")
		sess.AppendBlocks(turns.NewUserTextBlock(fmt.Sprintf(
			"You have acquired %d items but not built the playlist. Call build now with these item ids: %s",
			len(o.state.acquiredItems), strings.Join(o.state.acquiredItems, ", "))))
		sess.Turn.SetData(turns.KeyToolChoice, "required")
		return nil, false, nil
	}

	if len(o.state.acquiredItems) == 0 && o.state.resolveFailures > 0 {
		result, err := o.fail(ctx, sess, errors.New("zero items acquired across all requirements"))
		return result, true, err
	}

	o.state.nudges++
	if o.state.nudges > 1 {
		result, err := o.fail(ctx, sess, errors.New("model stopped making progress"))
		return result, true, err
	}
	sess.AppendBlocks(turns.NewUserTextBlock(
		"Continue with the operations: resolve each requirement, then build and verify."))
	return nil, false, nil
}

// recoverMalformed handles the provider quirk where tool call arguments come
// back as invalid JSON: bypass the model and build directly from whatever was
// already acquired.
func (o *Orchestrator) recoverMalformed(ctx context.Context, sess *session.Session) (*RunResult, bool, error) {
	events.PublishEventToContext(ctx, events.New(events.EventTypeStallRecovery,
		o.eventMeta(sess), map[string]any{"reason": "malformed_tool_call"}))

	if o.state.artifactID != "" && o.state.verified {
		result, err := o.finish(ctx, sess)
		return result, true, err
	}
	if len(o.state.acquiredItems) == 0 {
		result, err := o.fail(ctx, sess, errors.New("malformed tool calls before any items were acquired"))
		return result, true, err
	}

	log.Warn().Msg("malformed tool call from provider, building directly from acquired items")
	summary, err := o.svc.Build(ctx, o.state.acquiredItems, o.settings.Title, o.settings.Slug, !o.settings.PreserveOrder)
	if err != nil {
		result, ferr := o.fail(ctx, sess, errors.Wrap(err, "direct build after malformed tool call"))
		return result, true, ferr
	}
	o.trackBuild(summary)
	sess.AppendBlocks(turns.NewUserTextBlock(fmt.Sprintf(
		"The playlist was built directly from the acquired items (artifactId %s, %d items).",
		summary.ArtifactID, summary.ItemCount)))

	verifyResult, err := o.svc.Verify(ctx, summary.ArtifactID)
	if err != nil {
		result, ferr := o.fail(ctx, sess, errors.Wrap(err, "verify after direct build"))
		return result, true, ferr
	}
	if !verifyResult.Valid {
		return o.trackVerifyFailure(ctx, sess, verifyResult)
	}
	o.state.verified = true
	result, err := o.finish(ctx, sess)
	return result, true, err
}

// processCalls executes the pending operation calls, serving verbatim repeated
// resolve_requirement calls from the in-run cache, and folds the results into
// the run state.
func (o *Orchestrator) processCalls(ctx context.Context, sess *session.Session, pending []turns.PendingToolCall) (*RunResult, bool, error) {
	results := make([]tools.Result, len(pending))
	fromCache := make([]bool, len(pending))
	var calls []tools.Call
	slot := map[string]int{}

	for i, p := range pending {
		raw, err := json.Marshal(p.Arguments)
		if err != nil {
			raw = json.RawMessage("{}")
		}
		if p.Name == operations.OpResolveRequirement {
			if key, ok := resolveCacheKey(raw); ok {
				if cached, hit := o.state.resolveCache[key]; hit {
					log.Debug().Str("call_id", p.ID).Msg("resolve_requirement served from run cache")
					cached.CallID = p.ID
					results[i] = cached
					fromCache[i] = true
					continue
				}
			}
		}
		slot[p.ID] = i
		calls = append(calls, tools.Call{ID: p.ID, Name: p.Name, Arguments: raw})
	}

	for _, r := range o.executor.ExecuteCalls(ctx, calls, o.catalog) {
		results[slot[r.CallID]] = r
	}

	for i, p := range pending {
		res := results[i]
		sess.AppendBlocks(turns.NewToolUseBlock(p.ID, res.Content()))
		if fromCache[i] {
			continue
		}
		if result, done, err := o.trackResult(ctx, sess, p, res); done {
			return result, true, err
		}
	}
	return nil, false, nil
}

// trackResult folds one fresh operation result into the run state.
func (o *Orchestrator) trackResult(ctx context.Context, sess *session.Session, call turns.PendingToolCall, res tools.Result) (*RunResult, bool, error) {
	switch call.Name {
	case operations.OpResolveRequirement:
		if res.Err != nil {
			o.state.resolveFailures++
			return nil, false, nil
		}
		if projections, ok := res.Value.([]playlist.Projection); ok {
			for _, p := range projections {
				o.state.acquiredItems = append(o.state.acquiredItems, p.ID)
			}
		}
		if raw, err := json.Marshal(call.Arguments); err == nil {
			if key, ok := resolveCacheKey(raw); ok {
				o.state.resolveCache[key] = res
			}
		}

	case operations.OpFetchFeedItems:
		if res.Err == nil {
			if projections, ok := res.Value.([]playlist.Projection); ok {
				for _, p := range projections {
					o.state.acquiredItems = append(o.state.acquiredItems, p.ID)
				}
			}
		}

	case operations.OpBuild:
		if res.Err == nil {
			if summary, ok := res.Value.(*operations.BuildSummary); ok {
				o.trackBuild(summary)
			}
		}

	case operations.OpVerify:
		if res.Err != nil {
			return nil, false, nil
		}
		verifyResult, ok := res.Value.(*operations.VerifyResult)
		if !ok {
			return nil, false, nil
		}
		if verifyResult.Valid {
			o.state.verified = true
			return nil, false, nil
		}
		return o.trackVerifyFailure(ctx, sess, verifyResult)

	case operations.OpSendToDevice:
		if res.Err == nil {
			if sendResult, ok := res.Value.(*operations.SendResult); ok && sendResult.Success {
				o.state.sentTo = sendResult.DeviceName
			}
			return nil, false, nil
		}
		if o.settings.DeviceName != "" {
			// The user explicitly asked for this device; a failed delivery is fatal.
			result, err := o.fail(ctx, sess, errors.Errorf("send to device %s failed: %s", o.settings.DeviceName, res.Err.Message))
			return result, true, err
		}

	case operations.OpPublish:
		if res.Err == nil {
			if publishResult, ok := res.Value.(*operations.PublishResult); ok && publishResult.Success {
				o.state.publishedID = publishResult.PlaylistID
			}
			return nil, false, nil
		}
		o.state.publishErr = res.Err.Message
	}
	return nil, false, nil
}

func (o *Orchestrator) trackBuild(summary *operations.BuildSummary) {
	o.state.artifactID = summary.ArtifactID
	o.state.artifactPath = summary.Path
	o.state.itemCount = summary.ItemCount
	o.state.verified = false
}

// trackVerifyFailure counts a schema validation failure, aborting the run at
// the limit and otherwise injecting a repair directive.
func (o *Orchestrator) trackVerifyFailure(ctx context.Context, sess *session.Session, verifyResult *operations.VerifyResult) (*RunResult, bool, error) {
	o.state.verifyFailures++
	events.PublishEventToContext(ctx, events.New(events.EventTypeVerifyFailed,
		o.eventMeta(sess), map[string]any{
			"failures": o.state.verifyFailures,
			"error":    verifyResult.Error,
		}))
	if o.state.verifyFailures >= o.maxVerifyFailures {
		result, err := o.fail(ctx, sess, errors.Errorf(
			"artifact failed verification %d times, last error: %s", o.state.verifyFailures, verifyResult.Error))
		return result, true, err
	}
	details, _ := json.Marshal(verifyResult.Details)
	sess.AppendBlocks(turns.NewUserTextBlock(fmt.Sprintf(
		"Verification failed (%s). Details: %s. Fix the problem and build again.",
		verifyResult.Error, string(details))))
	return nil, false, nil
}

// finish enforces the completion contract deterministically: send when a
// device was named, then publish when a feed server was named. Publish
// failures are reported but never roll back the run.
func (o *Orchestrator) finish(ctx context.Context, sess *session.Session) (*RunResult, error) {
	if o.settings.DeviceName != "" && o.state.sentTo == "" {
		log.Info().Str("device", o.settings.DeviceName).Msg("enforcing device send")
		sendResult, err := o.svc.SendToDevice(ctx, o.state.artifactID, o.settings.DeviceName)
		if err != nil {
			return o.fail(ctx, sess, errors.Wrapf(err, "send to device %s", o.settings.DeviceName))
		}
		o.state.sentTo = sendResult.DeviceName
	}
	if o.settings.FeedServer != nil && o.state.publishedID == "" && o.state.publishErr == "" {
		log.Info().Str("server", o.settings.FeedServer.Name).Msg("enforcing publish")
		publishResult, err := o.svc.Publish(ctx, o.state.artifactPath, o.settings.FeedServer.Name)
		if err != nil {
			o.state.publishErr = err.Error()
		} else if publishResult.Success {
			o.state.publishedID = publishResult.PlaylistID
		}
	}

	o.svc.Registry().Clear()
	result := o.result(StatusDone)
	events.PublishEventToContext(ctx, events.New(events.EventTypeRunDone,
		o.eventMeta(sess), map[string]any{
			"artifact_id": result.ArtifactID,
			"items":       result.ItemCount,
			"sent_to":     result.SentToDevice,
		}))
	log.Info().
		Str("artifact_id", result.ArtifactID).
		Int("items", result.ItemCount).
		Int("turns", result.Turns).
		Msg("run done")
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, sess *session.Session, cause error) (*RunResult, error) {
	o.svc.Registry().Clear()
	result := o.result(StatusFailed)
	result.Error = cause.Error()
	events.PublishEventToContext(ctx, events.New(events.EventTypeRunFailed,
		o.eventMeta(sess), map[string]any{"error": cause.Error()}))
	log.Error().Err(cause).Int("turns", o.state.turns).Msg("run failed")
	return result, cause
}

func (o *Orchestrator) result(status Status) *RunResult {
	return &RunResult{
		Status:       status,
		ArtifactID:   o.state.artifactID,
		ArtifactPath: o.state.artifactPath,
		ItemCount:    o.state.itemCount,
		SentToDevice: o.state.sentTo,
		PublishedID:  o.state.publishedID,
		PublishError: o.state.publishErr,
		Turns:        o.state.turns,
	}
}

func (o *Orchestrator) eventMeta(sess *session.Session) events.EventMetadata {
	return events.EventMetadata{RunID: sess.ID, TurnID: sess.Turn.ID}
}

// resolveCacheKey canonicalizes resolve_requirement arguments so verbatim
// repeated calls hit the cache.
func resolveCacheKey(raw json.RawMessage) (string, bool) {
	var args struct {
		Requirement playlist.Requirement `json:"requirement"`
		Duration    int                  `json:"duration"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", false
	}
	return args.Requirement.CanonicalKey(args.Duration), true
}

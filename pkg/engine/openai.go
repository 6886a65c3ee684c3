package engine

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/mangiafuoco/pkg/retry"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// OpenAIEngine implements Engine over the OpenAI chat completions API with
// function tools. Tool definitions are read from the Turn's data under
// turns.KeyToolCatalog.
type OpenAIEngine struct {
	client      *go_openai.Client
	model       string
	temperature float32
	maxTokens   int
	policy      retry.Policy
}

type Option func(*OpenAIEngine)

func WithClient(client *go_openai.Client) Option {
	return func(e *OpenAIEngine) { e.client = client }
}

func WithModel(model string) Option {
	return func(e *OpenAIEngine) { e.model = model }
}

func WithTemperature(t float32) Option {
	return func(e *OpenAIEngine) { e.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(e *OpenAIEngine) { e.maxTokens = n }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(e *OpenAIEngine) { e.policy = p }
}

// NewOpenAIEngine creates an engine talking to the OpenAI API. The retry
// policy applies only to rate-limit responses; other provider failures
// propagate immediately.
func NewOpenAIEngine(apiKey string, opts ...Option) *OpenAIEngine {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 4
	policy.IsRetryable = func(err error) bool {
		var rle *RateLimitError
		return errors.As(err, &rle)
	}
	e := &OpenAIEngine{
		client: go_openai.NewClient(apiKey),
		model:  go_openai.GPT4TurboPreview,
		policy: policy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// RunInference sends the Turn to the chat completions API and appends the
// response blocks. The stop reason ends up in Turn metadata; malformed tool
// call arguments are flagged as StopReasonMalformedToolCall so the caller can
// apply provider-quirk recovery instead of looping.
func (e *OpenAIEngine) RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	if t == nil {
		t = &turns.Turn{}
	}
	req := go_openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    messagesFromTurn(t),
		Temperature: e.temperature,
	}
	if e.maxTokens > 0 {
		req.MaxTokens = e.maxTokens
	}
	attachTools(&req, t)

	log.Debug().
		Str("model", e.model).
		Int("num_messages", len(req.Messages)).
		Int("num_tools", len(req.Tools)).
		Msg("openai: running inference")

	var resp go_openai.ChatCompletionResponse
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		var reqErr error
		resp, reqErr = e.client.CreateChatCompletion(ctx, req)
		return classifyError(reqErr)
	})
	if err != nil {
		var rle *RateLimitError
		if errors.As(err, &rle) {
			return nil, &ProviderError{Op: "chat completion (rate limit retries exhausted)", Err: err}
		}
		return nil, &ProviderError{Op: "chat completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Op: "chat completion", Err: errors.New("no choices in response")}
	}

	out := t.Clone()
	choice := resp.Choices[0]
	stopReason := string(choice.FinishReason)

	if choice.Message.Content != "" {
		turns.AppendBlock(out, turns.NewAssistantTextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			// Provider quirk: a tool call whose arguments are not valid JSON.
			// Surface it via the stop reason so orchestration can bypass the
			// model instead of feeding garbage back into the loop.
			log.Warn().
				Str("tool", tc.Function.Name).
				Str("raw_args", tc.Function.Arguments).
				Msg("openai: malformed tool call arguments")
			stopReason = turns.StopReasonMalformedToolCall
			continue
		}
		turns.AppendBlock(out, turns.NewToolCallBlock(tc.ID, tc.Function.Name, args))
	}

	out.SetMetadata(turns.KeyStopReason, stopReason)
	out.SetMetadata(turns.KeyModel, resp.Model)
	out.SetMetadata(turns.KeyUsage, map[string]int{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})
	return out, nil
}

// messagesFromTurn converts Turn blocks into chat messages. Consecutive
// llm_text + tool_call blocks collapse into a single assistant message so the
// provider sees tool calls attached to the message that announced them.
func messagesFromTurn(t *turns.Turn) []go_openai.ChatCompletionMessage {
	var msgs []go_openai.ChatCompletionMessage
	var pending *go_openai.ChatCompletionMessage
	flush := func() {
		if pending != nil {
			msgs = append(msgs, *pending)
			pending = nil
		}
	}
	for _, b := range t.Blocks {
		switch b.Kind {
		case turns.BlockKindSystem:
			flush()
			text, _ := b.Payload[turns.PayloadKeyText].(string)
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: text})
		case turns.BlockKindUser:
			flush()
			text, _ := b.Payload[turns.PayloadKeyText].(string)
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: text})
		case turns.BlockKindLLMText:
			flush()
			text, _ := b.Payload[turns.PayloadKeyText].(string)
			pending = &go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: text}
		case turns.BlockKindToolCall:
			if pending == nil {
				pending = &go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant}
			}
			id, _ := b.Payload[turns.PayloadKeyID].(string)
			name, _ := b.Payload[turns.PayloadKeyName].(string)
			argsJSON, err := json.Marshal(b.Payload[turns.PayloadKeyArgs])
			if err != nil {
				argsJSON = []byte("{}")
			}
			pending.ToolCalls = append(pending.ToolCalls, go_openai.ToolCall{
				ID:   id,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      name,
					Arguments: string(argsJSON),
				},
			})
		case turns.BlockKindToolUse:
			flush()
			id, _ := b.Payload[turns.PayloadKeyID].(string)
			var content string
			switch v := b.Payload[turns.PayloadKeyResult].(type) {
			case string:
				content = v
			default:
				if encoded, err := json.Marshal(v); err == nil {
					content = string(encoded)
				}
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: id,
			})
		}
	}
	flush()
	return msgs
}

func attachTools(req *go_openai.ChatCompletionRequest, t *turns.Turn) {
	catalogAny, ok := t.Data[turns.KeyToolCatalog]
	if !ok {
		return
	}
	catalog, ok := catalogAny.(*tools.Catalog)
	if !ok || catalog == nil {
		return
	}
	for _, def := range catalog.List() {
		req.Tools = append(req.Tools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	if choice, ok := t.Data[turns.KeyToolChoice].(string); ok && choice != "" {
		req.ToolChoice = choice
	}
}

var retryAfterRe = regexp.MustCompile(`(?:try again|retry) (?:in|after) ([0-9.]+) ?(ms|s|seconds?)`)

// classifyError turns rate-limit API errors into RateLimitError, extracting
// the provider-supplied retry hint from the message when present.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return &RateLimitError{Err: err, Hint: parseRetryHint(apiErr.Message)}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return &RateLimitError{Err: err}
	}
	return err
}

func parseRetryHint(message string) time.Duration {
	m := retryAfterRe.FindStringSubmatch(message)
	if len(m) != 3 {
		return 0
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if m[2] == "ms" {
		return time.Duration(val * float64(time.Millisecond))
	}
	return time.Duration(val * float64(time.Second))
}

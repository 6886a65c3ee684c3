package engine

import (
	"errors"
	"testing"
	"time"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

func TestMessagesFromTurnCollapsesAssistantToolCalls(t *testing.T) {
	tn := &turns.Turn{}
	turns.AppendBlocks(tn,
		turns.NewSystemTextBlock("you are a curator"),
		turns.NewUserTextBlock("build me a playlist"),
		turns.NewAssistantTextBlock("let me look that up"),
		turns.NewToolCallBlock("call-1", "search_feed", map[string]any{"name": "Social Codes"}),
		turns.NewToolUseBlock("call-1", `{"bestMatch":"Social Codes"}`),
	)

	msgs := messagesFromTurn(tn)
	require.Len(t, msgs, 4)
	assert.Equal(t, go_openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, go_openai.ChatMessageRoleUser, msgs[1].Role)

	asst := msgs[2]
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, asst.Role)
	assert.Equal(t, "let me look that up", asst.Content)
	require.Len(t, asst.ToolCalls, 1)
	assert.Equal(t, "call-1", asst.ToolCalls[0].ID)
	assert.Equal(t, "search_feed", asst.ToolCalls[0].Function.Name)
	assert.Contains(t, asst.ToolCalls[0].Function.Arguments, "Social Codes")

	toolMsg := msgs[3]
	assert.Equal(t, go_openai.ChatMessageRoleTool, toolMsg.Role)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)
}

func TestMessagesFromTurnBareToolCall(t *testing.T) {
	tn := &turns.Turn{}
	turns.AppendBlocks(tn,
		turns.NewUserTextBlock("go"),
		turns.NewToolCallBlock("call-9", "list_devices", map[string]any{}),
	)
	msgs := messagesFromTurn(tn)
	require.Len(t, msgs, 2)
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, classifyError(nil))

	rl := classifyError(&go_openai.APIError{
		HTTPStatusCode: 429,
		Message:        "Rate limit reached. Please try again in 20s.",
	})
	var rle *RateLimitError
	require.ErrorAs(t, rl, &rle)
	assert.Equal(t, 20*time.Second, rle.RetryAfter())

	other := classifyError(&go_openai.APIError{HTTPStatusCode: 500, Message: "boom"})
	var rle2 *RateLimitError
	assert.False(t, errors.As(other, &rle2))
}

func TestParseRetryHint(t *testing.T) {
	assert.Equal(t, 20*time.Second, parseRetryHint("Please try again in 20s."))
	assert.Equal(t, 500*time.Millisecond, parseRetryHint("try again in 500 ms"))
	assert.Equal(t, 2*time.Second, parseRetryHint("please retry after 2 seconds"))
	assert.Equal(t, time.Duration(0), parseRetryHint("no hint here"))
}

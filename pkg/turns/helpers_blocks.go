package turns

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Convenience constructors for commonly used Block shapes.

// Role string constants used for human roles in blocks.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// NewUserTextBlock returns a Block representing a user text message.
func NewUserTextBlock(text string) Block {
	return Block{
		ID:      uuid.NewString(),
		Kind:    BlockKindUser,
		Role:    RoleUser,
		Payload: map[string]any{PayloadKeyText: text},
	}
}

// NewAssistantTextBlock returns a Block representing assistant LLM text output.
func NewAssistantTextBlock(text string) Block {
	return Block{
		ID:      uuid.NewString(),
		Kind:    BlockKindLLMText,
		Role:    RoleAssistant,
		Payload: map[string]any{PayloadKeyText: text},
	}
}

// NewSystemTextBlock returns a Block representing a system directive.
func NewSystemTextBlock(text string) Block {
	return Block{
		ID:      uuid.NewString(),
		Kind:    BlockKindSystem,
		Role:    RoleSystem,
		Payload: map[string]any{PayloadKeyText: text},
	}
}

// NewToolCallBlock returns a Block requesting invocation of a tool.
// id is a provider-assigned identifier used to correlate tool_use results.
func NewToolCallBlock(id string, name string, args any) Block {
	return Block{
		ID:   id,
		Kind: BlockKindToolCall,
		Payload: map[string]any{
			PayloadKeyID:   id,
			PayloadKeyName: name,
			PayloadKeyArgs: args,
		},
	}
}

// NewToolUseBlock returns a Block capturing the result of a tool execution.
// id must match the corresponding tool_call id.
func NewToolUseBlock(id string, result any) Block {
	return Block{
		ID:   uuid.NewString(),
		Kind: BlockKindToolUse,
		Payload: map[string]any{
			PayloadKeyID:     id,
			PayloadKeyResult: result,
		},
	}
}

// NewSeedTurn opens a conversation: an optional system prompt followed by the
// user's request. Both orchestration loops start from a turn built this way.
func NewSeedTurn(systemPrompt, userText string) *Turn {
	t := &Turn{}
	if systemPrompt != "" {
		AppendBlock(t, NewSystemTextBlock(systemPrompt))
	}
	if userText != "" {
		AppendBlock(t, NewUserTextBlock(userText))
	}
	return t
}

// PendingToolCall describes a tool_call block without a matching tool_use block yet.
type PendingToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ExtractPendingToolCalls finds tool_call blocks that don't yet have a matching
// tool_use block, in block order.
func ExtractPendingToolCalls(t *Turn) []PendingToolCall {
	if t == nil {
		return nil
	}
	used := make(map[string]bool)
	for _, b := range t.Blocks {
		if b.Kind == BlockKindToolUse {
			if id, ok := b.Payload[PayloadKeyID].(string); ok && id != "" {
				used[id] = true
			}
		}
	}
	var calls []PendingToolCall
	for _, b := range t.Blocks {
		if b.Kind != BlockKindToolCall {
			continue
		}
		id, _ := b.Payload[PayloadKeyID].(string)
		if id == "" || used[id] {
			continue
		}
		name, _ := b.Payload[PayloadKeyName].(string)
		var args map[string]any
		if raw := b.Payload[PayloadKeyArgs]; raw != nil {
			switch v := raw.(type) {
			case map[string]any:
				args = v
			case string:
				_ = json.Unmarshal([]byte(v), &args)
			case json.RawMessage:
				_ = json.Unmarshal(v, &args)
			default:
				if bts, err := json.Marshal(v); err == nil {
					_ = json.Unmarshal(bts, &args)
				}
			}
		}
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, PendingToolCall{ID: id, Name: name, Arguments: args})
	}
	return calls
}

// LastAssistantText returns the text of the last llm_text block, if any.
func LastAssistantText(t *Turn) (string, bool) {
	blocks := BlocksByKind(t, BlockKindLLMText)
	for i := len(blocks) - 1; i >= 0; i-- {
		if s, ok := blocks[i].Payload[PayloadKeyText].(string); ok {
			return s, true
		}
	}
	return "", false
}

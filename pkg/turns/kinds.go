package turns

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// BlockKind represents the kind of a block within a Turn.
type BlockKind int

const (
	BlockKindUnknown BlockKind = iota
	BlockKindSystem
	BlockKindUser
	BlockKindLLMText
	BlockKindToolCall
	BlockKindToolUse
	BlockKindOther
)

// String returns a human-readable identifier for the BlockKind.
func (k BlockKind) String() string {
	switch k {
	case BlockKindSystem:
		return "system"
	case BlockKindUser:
		return "user"
	case BlockKindLLMText:
		return "llm_text"
	case BlockKindToolCall:
		return "tool_call"
	case BlockKindToolUse:
		return "tool_use"
	case BlockKindOther:
		return "other"
	default:
		return "unknown"
	}
}

// YAML serialization for BlockKind using stable string names
func (k BlockKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

func (k *BlockKind) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*k = BlockKindUnknown
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		*k = BlockKindSystem
	case "user":
		*k = BlockKindUser
	case "llm_text":
		*k = BlockKindLLMText
	case "tool_call":
		*k = BlockKindToolCall
	case "tool_use":
		*k = BlockKindToolUse
	case "other":
		*k = BlockKindOther
	default:
		*k = BlockKindUnknown
	}
	return nil
}

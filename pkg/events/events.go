package events

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType tags run progress events.
type EventType string

const (
	EventTypeRunStart      EventType = "run-start"
	EventTypeToolCall      EventType = "tool-call-execute"
	EventTypeToolResult    EventType = "tool-call-execution-result"
	EventTypeVerifyFailed  EventType = "verify-failed"
	EventTypeStallRecovery EventType = "stall-recovery"
	EventTypeClarification EventType = "clarification-requested"
	EventTypeRunDone       EventType = "run-done"
	EventTypeRunFailed     EventType = "run-failed"
	EventTypeError         EventType = "error"
)

// Event is a progress notification emitted while a run executes.
type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata correlates an event with the run and turn that produced it.
type EventMetadata struct {
	ID     uuid.UUID `json:"id"`
	RunID  string    `json:"run_id,omitempty"`
	TurnID string    `json:"turn_id,omitempty"`
}

// EventImpl is the common event carrier.
type EventImpl struct {
	Type_     EventType      `json:"type"`
	Metadata_ EventMetadata  `json:"meta,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }

func (e *EventImpl) Payload() []byte {
	b, _ := json.Marshal(e)
	return b
}

// New creates an event of the given type with structured fields.
func New(typ EventType, meta EventMetadata, fields map[string]any) Event {
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	return &EventImpl{Type_: typ, Metadata_: meta, Fields: fields}
}

// NewToolCallEvent records that an operation is about to execute.
func NewToolCallEvent(meta EventMetadata, callID, name, args string) Event {
	return New(EventTypeToolCall, meta, map[string]any{
		"call_id": callID,
		"name":    name,
		"args":    args,
	})
}

// NewToolResultEvent records an operation result (or error).
func NewToolResultEvent(meta EventMetadata, callID, result, errMsg string) Event {
	fields := map[string]any{"call_id": callID, "result": result}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	return New(EventTypeToolResult, meta, fields)
}

// NewErrorEvent records a run-level error.
func NewErrorEvent(meta EventMetadata, err error) Event {
	return New(EventTypeError, meta, map[string]any{"error": err.Error()})
}

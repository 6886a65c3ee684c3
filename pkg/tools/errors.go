package tools

import "fmt"

// ToolErrorType classifies operation call failures.
type ToolErrorType string

const (
	// ErrTypeValidation marks malformed or missing call arguments. These are
	// recoverable: the structured message is fed back into the conversation.
	ErrTypeValidation ToolErrorType = "validation"
	// ErrTypeExecution marks a failure inside the operation itself.
	ErrTypeExecution ToolErrorType = "execution"
	// ErrTypeNotFound marks a call naming an operation outside the catalog.
	ErrTypeNotFound ToolErrorType = "not_found"
)

// ToolError is the structured failure fed back to the model for a single call.
type ToolError struct {
	ToolName string        `json:"tool_name"`
	CallID   string        `json:"call_id,omitempty"`
	Type     ToolErrorType `json:"type"`
	Message  string        `json:"message"`
	Details  any           `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s] %s: %s", e.Type, e.ToolName, e.Message)
}

// NewArgumentValidationError builds the validation-class error for a call.
func NewArgumentValidationError(name, callID, message string, details any) *ToolError {
	return &ToolError{
		ToolName: name,
		CallID:   callID,
		Type:     ErrTypeValidation,
		Message:  message,
		Details:  details,
	}
}

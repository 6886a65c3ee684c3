package intent

import "fmt"

// RequirementValidationError reports a structurally incomplete terminal
// payload. The whole resolution fails; a bad requirement is never silently
// dropped from the set. In interactive mode the error text is fed back into
// the conversation instead.
type RequirementValidationError struct {
	// Index is the position of the offending requirement, or -1 when the
	// payload as a whole is unusable.
	Index int
	Cause error
}

func (e *RequirementValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid requirement payload: %v", e.Cause)
	}
	return fmt.Sprintf("invalid requirement %d: %v", e.Index, e.Cause)
}

func (e *RequirementValidationError) Unwrap() error { return e.Cause }

// NeedsClarificationError is returned in non-interactive mode when the model
// asks a question instead of producing a terminal payload.
type NeedsClarificationError struct {
	Question string
}

func (e *NeedsClarificationError) Error() string {
	return fmt.Sprintf("clarification needed: %s", e.Question)
}

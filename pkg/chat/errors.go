package chat

import (
	"errors"
	"fmt"
)

// User-visible validation messages. Clients match on these strings.
const (
	MsgEmptyQuestion     = "Question cannot be empty"
	MsgQuestionTooLong   = "Question too long (max 2000 characters)"
	MsgSessionIDRequired = "session_id required"
)

// ErrNotInitialized is returned when the orchestrator is used without a
// store or engine.
var ErrNotInitialized = errors.New("chat orchestrator not initialized")

// ValidationError reports a request that was rejected before any state was
// touched. Its message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// GenerationError wraps a failure of the inference engine.
type GenerationError struct {
	SessionID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate answer for session %s: %v", e.SessionID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

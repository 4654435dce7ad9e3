package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session does not exist in the
	// store, either because it expired or was never created.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateEvent marks a payment event that was already processed.
	// Callers report it as success-but-duplicate, never as a failure.
	ErrDuplicateEvent = errors.New("payment event already processed")

	// ErrInvalidTransition is returned when a status change would violate
	// the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// RetryableError wraps transient failures that should trigger a requeue
// when processing queued notification deliveries.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

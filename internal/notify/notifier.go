// Package notify delivers the "more matches" email that carries every job
// beyond the first page of on-screen results.
package notify

import (
	"context"
	"errors"
	"regexp"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

var (
	ErrInvalidAddress = errors.New("recipient email address is invalid")
	ErrDeliveryFailed = errors.New("email delivery failed after retries")
)

// emailRe is deliberately loose; the provider is the real authority on
// deliverability. This only catches obvious garbage before burning an API
// call on it.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Notification is one email delivery request. SessionID travels with it so
// an asynchronous consumer can mark the session notified after the send.
type Notification struct {
	SessionID string        `json:"session_id"`
	Email     string        `json:"email"`
	Jobs      []session.Job `json:"jobs"`
}

// Notifier sends a notification and returns the provider message ID. For
// queue-backed implementations the ID identifies the enqueued message, not
// a delivered email.
type Notifier interface {
	Send(ctx context.Context, n Notification) (string, error)
}

// ValidateAddress fails fast on malformed recipients.
func ValidateAddress(email string) error {
	if !emailRe.MatchString(email) {
		return ErrInvalidAddress
	}
	return nil
}

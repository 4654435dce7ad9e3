// Package payment wraps the checkout provider. Checkout metadata carries a
// compacted copy of the session so a paid session can be reconstructed even
// if the in-memory record was lost between upload and webhook.
package payment

import (
	"context"
	"errors"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

var (
	ErrInvalidSignature = errors.New("payment event signature verification failed")
	ErrEventIgnored     = errors.New("payment event type is not handled")
	ErrCheckoutNotFound = errors.New("no checkout found for session")
)

// CheckoutInput is what the gateway needs to start a checkout.
type CheckoutInput struct {
	SessionID string
	Email     string
	Profile   session.Profile
}

// Event is a verified, provider-agnostic payment completion. Profile is the
// compacted copy recovered from checkout metadata; it is nil when the
// metadata was missing or corrupt.
type Event struct {
	ID                string
	CheckoutSessionID string
	SessionID         string
	Email             string
	Profile           *session.Profile
}

// Gateway is the payment provider surface the rest of the service sees.
type Gateway interface {
	// CreateCheckout starts a checkout for a session and returns the
	// hosted payment page URL.
	CreateCheckout(ctx context.Context, in CheckoutInput) (string, error)

	// VerifyEvent authenticates a raw webhook payload and extracts the
	// completion event. Unhandled event types return ErrEventIgnored.
	VerifyEvent(payload []byte, signature string) (Event, error)

	// LookupCheckout fetches a completed checkout by its provider-side
	// ID, for clients returning from the payment page.
	LookupCheckout(ctx context.Context, checkoutSessionID string) (Event, error)

	// FindCheckoutBySession scans recent checkouts for one created for
	// the given session ID. Used to backfill a session whose webhook
	// never arrived.
	FindCheckoutBySession(ctx context.Context, sessionID string) (Event, error)
}

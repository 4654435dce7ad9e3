package dto

import (
	"github.com/jobmatch/jobmatch-be/internal/session"
)

// UploadResponse is returned after a resume is parsed and a session opened.
type UploadResponse struct {
	SessionID string          `json:"sessionId"`
	Profile   session.Profile `json:"profile"`
}

// CheckoutRequest starts a payment for a parsed session.
type CheckoutRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

// CheckoutResponse carries the hosted payment page URL.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// WebhookResponse acknowledges a payment event.
type WebhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// ResultsResponse is the results page payload. Jobs holds only the
// on-screen portion; the rest went out by email.
type ResultsResponse struct {
	SessionID string         `json:"sessionId"`
	Status    session.Status `json:"status"`
	Email     string         `json:"email,omitempty"`
	Jobs      []session.Job  `json:"jobs"`
	TotalJobs int            `json:"totalJobs"`
}

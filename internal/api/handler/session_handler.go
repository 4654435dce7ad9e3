package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jobmatch/jobmatch-be/internal/api/dto"
	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/orchestrator"
	"github.com/jobmatch/jobmatch-be/internal/parser"
	"github.com/jobmatch/jobmatch-be/internal/payment"
	"github.com/jobmatch/jobmatch-be/internal/session"
)

// Upload handles POST /api/v1/upload
// Accepts a multipart PDF resume, parses it into a profile and opens a
// pending session.
func (h *SessionHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("resume")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing resume file"})
		return
	}

	if fileHeader.Size > parser.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Resume must be 5MB or smaller"})
		return
	}
	if !isPDFUpload(fileHeader.Filename, fileHeader.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF resumes are supported"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, parser.MaxUploadBytes+1))
	if err != nil {
		h.logger.Error("Failed to read uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	if len(data) > parser.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Resume must be 5MB or smaller"})
		return
	}

	text, err := parser.ExtractPDFText(data)
	if err != nil {
		h.logger.Warn("Resume extraction rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded PDF"})
		return
	}

	profile, err := h.parser.Parse(c.Request.Context(), text)
	if err != nil {
		status, message := parseErrorResponse(err)
		h.logger.Warn("Resume parsing failed", slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": message})
		return
	}

	s := session.Session{
		ID:         uuid.New().String(),
		ResumeText: text,
		Profile:    &profile,
		Status:     session.StatusPending,
		CreatedAt:  time.Now(),
	}
	if err := h.store.Put(c.Request.Context(), s); err != nil {
		h.logger.Error("Failed to store session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.logger.Info("Session created",
		slog.String("session_id", s.ID),
		slog.Int("resume_chars", len(text)),
	)

	c.JSON(http.StatusOK, dto.UploadResponse{SessionID: s.ID, Profile: profile})
}

// Checkout handles POST /api/v1/checkout
// Attaches the email to the session and returns the hosted payment URL.
func (h *SessionHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := notify.ValidateAddress(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
		return
	}

	s, err := h.store.Get(c.Request.Context(), req.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
		return
	}

	if err := h.store.Patch(c.Request.Context(), s.ID, session.Patch{Email: &req.Email}); err != nil {
		h.logger.Error("Failed to attach email", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update session"})
		return
	}

	profile := session.Profile{}
	if s.Profile != nil {
		profile = *s.Profile
	}
	url, err := h.gateway.CreateCheckout(c.Request.Context(), payment.CheckoutInput{
		SessionID: s.ID,
		Email:     req.Email,
		Profile:   profile,
	})
	if err != nil {
		h.logger.Error("Failed to create checkout",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start checkout"})
		return
	}

	c.JSON(http.StatusOK, dto.CheckoutResponse{CheckoutURL: url})
}

// Webhook handles POST /api/v1/webhook
// Verifies the raw payload signature and drives the orchestrator. A 500
// response makes the payment provider redeliver the event.
func (h *SessionHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	event, err := h.gateway.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payment.ErrEventIgnored) {
		c.JSON(http.StatusOK, dto.WebhookResponse{Received: true})
		return
	}
	if err != nil {
		h.logger.Warn("Webhook verification failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	outcome, err := h.orchestrator.HandlePaymentEvent(c.Request.Context(), event)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		h.logger.Error("Payment event processing failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment event"})
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Received: true, Duplicate: outcome.Duplicate})
}

// Results handles GET /api/v1/results/:session_id
func (h *SessionHandler) Results(c *gin.Context) {
	sessionID := c.Param("session_id")

	s, err := h.orchestrator.Results(c.Request.Context(), sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load results",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load results"})
		return
	}

	c.JSON(http.StatusOK, resultsResponse(s))
}

// ResolveSession handles GET /api/v1/session?checkout_session_id=
// Maps a payment-redirect checkout ID back to the session and its results.
func (h *SessionHandler) ResolveSession(c *gin.Context) {
	checkoutID := c.Query("checkout_session_id")
	if checkoutID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing checkout_session_id"})
		return
	}

	s, err := h.orchestrator.ResolveCheckout(c.Request.Context(), checkoutID)
	if errors.Is(err, payment.ErrCheckoutNotFound) || errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to resolve checkout",
			slog.String("checkout_session_id", checkoutID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve checkout"})
		return
	}

	c.JSON(http.StatusOK, resultsResponse(s))
}

// resultsResponse renders the on-screen portion of a session's jobs.
func resultsResponse(s session.Session) dto.ResultsResponse {
	jobs := s.Jobs
	if len(jobs) > orchestrator.OnScreenJobs {
		jobs = jobs[:orchestrator.OnScreenJobs]
	}
	if jobs == nil {
		jobs = []session.Job{}
	}
	return dto.ResultsResponse{
		SessionID: s.ID,
		Status:    s.Status,
		Email:     s.Email,
		Jobs:      jobs,
		TotalJobs: len(s.Jobs),
	}
}

func isPDFUpload(filename, contentType string) bool {
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// parseErrorResponse maps parser failures to client-facing responses.
// Extraction infrastructure failures are the only 5xx case.
func parseErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, parser.ErrInsufficientContent):
		return http.StatusBadRequest, "Resume contains too little text; try a text-based PDF"
	case errors.Is(err, parser.ErrNotAResume):
		return http.StatusBadRequest, "The uploaded document does not look like a resume"
	case errors.Is(err, parser.ErrUnreadableFormat):
		return http.StatusBadRequest, "Could not read the uploaded PDF"
	default:
		return http.StatusInternalServerError, "Failed to parse resume"
	}
}

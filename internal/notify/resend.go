package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	resendAPIURL = "https://api.resend.com/emails"

	sendMaxAttempts = 3
	sendBaseBackoff = 2 * time.Second
)

// ResendNotifier delivers emails synchronously through the Resend HTTP
// API, retrying transient failures with exponential backoff (2s, 4s, 8s).
type ResendNotifier struct {
	apiKey  string
	from    string
	apiURL  string
	client  *http.Client
	backoff time.Duration
	logger  *slog.Logger
}

func NewResendNotifier(apiKey, from string, logger *slog.Logger) *ResendNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResendNotifier{
		apiKey:  apiKey,
		from:    from,
		apiURL:  resendAPIURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		backoff: sendBaseBackoff,
		logger:  logger,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// Send renders and delivers the email. A malformed address fails fast
// without a provider call; 4xx responses other than 429 are not retried.
func (n *ResendNotifier) Send(ctx context.Context, notification Notification) (string, error) {
	if err := ValidateAddress(notification.Email); err != nil {
		return "", err
	}

	subject, html, err := RenderEmail(notification.Jobs)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(resendRequest{
		From:    n.from,
		To:      []string{notification.Email},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal email request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < sendMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := n.backoff * time.Duration(1<<(attempt-1))
			n.logger.Warn("Retrying email delivery",
				slog.String("session_id", notification.SessionID),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		id, retryable, err := n.attempt(ctx, body)
		if err == nil {
			n.logger.Info("Notification email sent",
				slog.String("session_id", notification.SessionID),
				slog.String("message_id", id),
				slog.Int("jobs", len(notification.Jobs)),
			)
			return id, nil
		}

		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %s", ErrDeliveryFailed, lastErr)
}

func (n *ResendNotifier) attempt(ctx context.Context, body []byte) (id string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed resendResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			// Delivery succeeded even if the response body is odd.
			return "", false, nil
		}
		return parsed.ID, false, nil
	}

	errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return "", retryable, fmt.Errorf("email API returned status %d: %s", resp.StatusCode, errText)
}

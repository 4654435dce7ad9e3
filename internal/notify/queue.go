package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jobmatch/jobmatch-be/internal/session"
	"github.com/jobmatch/jobmatch-be/shared/rabbitmq"
)

// QueueNotifier hands the notification to the worker service over
// RabbitMQ instead of delivering it inline. The API process stays fast;
// the worker owns retries and marks the session notified after the real
// send.
type QueueNotifier struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

func NewQueueNotifier(client *rabbitmq.Client, logger *slog.Logger) *QueueNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueNotifier{client: client, logger: logger}
}

// Send validates and enqueues. The returned ID names the queued message,
// not a delivered email.
func (q *QueueNotifier) Send(ctx context.Context, notification Notification) (string, error) {
	if err := ValidateAddress(notification.Email); err != nil {
		return "", err
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := q.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return "", session.NewRetryableError(fmt.Errorf("failed to enqueue notification: %w", err))
	}

	q.logger.Info("Notification enqueued",
		slog.String("session_id", notification.SessionID),
		slog.Int("jobs", len(notification.Jobs)),
	)
	return "queued:" + notification.SessionID, nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/session"
)

// processNotification delivers one queued email and records the delivery
// on the session. Redeliveries are absorbed by the EmailNotified check.
func (w *Worker) processNotification(ctx context.Context, msg *deliveryMessage) error {
	n := msg.Notification

	w.logger.Info("Processing notification",
		slog.String("session_id", n.SessionID),
		slog.Int("jobs", len(n.Jobs)),
	)

	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	s, err := w.store.Get(ctx, n.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// Session expired between enqueue and delivery; the email
			// content is self-contained, send it anyway.
			w.logger.Warn("Session gone before notification delivery, sending anyway",
				slog.String("session_id", n.SessionID),
			)
			_, sendErr := w.notifier.Send(ctx, n)
			if sendErr != nil {
				return w.classify(sendErr)
			}
			return nil
		}
		return session.NewRetryableError(fmt.Errorf("failed to load session: %w", err))
	}

	if s.EmailNotified {
		w.logger.Info("Session already notified, skipping",
			slog.String("session_id", n.SessionID),
		)
		return nil
	}

	messageID, err := w.notifier.Send(ctx, n)
	if err != nil {
		return w.classify(err)
	}

	notified := true
	if err := w.store.Patch(ctx, n.SessionID, session.Patch{EmailNotified: &notified}); err != nil {
		// The email went out; failing the message now would resend it.
		w.logger.Error("Failed to record email notification",
			slog.String("session_id", n.SessionID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	w.logger.Info("Notification delivered",
		slog.String("session_id", n.SessionID),
		slog.String("message_id", messageID),
	)
	return nil
}

// classify maps notifier errors to the requeue decision: exhausted
// delivery retries are transient, a rejected address is permanent.
func (w *Worker) classify(err error) error {
	if errors.Is(err, notify.ErrInvalidAddress) {
		return err
	}
	if errors.Is(err, notify.ErrDeliveryFailed) {
		return session.NewRetryableError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return session.NewRetryableError(err)
	}
	return err
}

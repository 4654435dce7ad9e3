// Package orchestrator drives a session from verified payment through job
// search to notification. It is the only writer of session status after
// upload, and every entry point is safe to call more than once for the
// same payment.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/payment"
	"github.com/jobmatch/jobmatch-be/internal/session"
	"github.com/jobmatch/jobmatch-be/internal/store"
)

// OnScreenJobs is how many results the client renders; everything beyond
// this count goes out by email instead.
const OnScreenJobs = 5

// Searcher is the engine surface the orchestrator needs.
type Searcher interface {
	Search(ctx context.Context, profile session.Profile) ([]session.Job, error)
}

// Orchestrator owns the paid-session pipeline.
type Orchestrator struct {
	store    store.SessionStore
	engine   Searcher
	notifier notify.Notifier
	gateway  payment.Gateway
	queued   bool
	logger   *slog.Logger
	now      func() time.Time
}

// Config assembles an Orchestrator. Gateway may be nil in tests that never
// exercise the backfill path.
type Config struct {
	Store    store.SessionStore
	Engine   Searcher
	Notifier notify.Notifier
	Gateway  payment.Gateway
	Logger   *slog.Logger

	// QueuedDelivery marks the notifier as enqueue-only: Send success
	// means the message reached the queue, not the recipient, so the
	// consumer records EmailNotified after the actual send.
	QueuedDelivery bool
}

func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    cfg.Store,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		gateway:  cfg.Gateway,
		queued:   cfg.QueuedDelivery,
		logger:   logger,
		now:      time.Now,
	}
}

// Outcome summarizes one HandlePaymentEvent call for the webhook handler.
type Outcome struct {
	SessionID string
	Status    session.Status
	Jobs      int
	Duplicate bool
}

// HandlePaymentEvent runs the full pipeline for a verified payment.
//
// A session missing from the store is reconstructed from the compacted
// profile the event carries; redelivered events and already-complete
// sessions short-circuit into a duplicate outcome with no side effects.
// Any search failure moves the session to failed and returns the error so
// the gateway redelivers the webhook.
func (o *Orchestrator) HandlePaymentEvent(ctx context.Context, event payment.Event) (Outcome, error) {
	s, err := o.store.Get(ctx, event.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		s, err = o.reconstruct(ctx, event)
	}
	if err != nil {
		return Outcome{}, err
	}

	if err := checkDuplicate(s, event); errors.Is(err, session.ErrDuplicateEvent) {
		o.logger.Info("Duplicate payment event ignored",
			slog.String("session_id", s.ID),
			slog.String("event_id", event.ID),
		)
		return Outcome{SessionID: s.ID, Status: s.Status, Jobs: len(s.Jobs), Duplicate: true}, nil
	}

	if err := o.transition(ctx, s.ID, s.Status, session.StatusProcessing, session.Patch{
		PaymentEventID: &event.ID,
	}); err != nil {
		return Outcome{}, fmt.Errorf("failed to mark session processing: %w", err)
	}

	jobCount, err := o.runPipeline(ctx, s)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{SessionID: s.ID, Status: session.StatusComplete, Jobs: jobCount}, nil
}

// runPipeline is the search-complete-notify tail shared by the webhook
// path and the read-path self-heal. The caller has already moved the
// session to processing.
func (o *Orchestrator) runPipeline(ctx context.Context, s session.Session) (int, error) {
	jobs, err := o.runSearch(ctx, s)
	if err != nil {
		o.markFailed(ctx, s.ID)
		return 0, err
	}

	if err := o.transition(ctx, s.ID, session.StatusProcessing, session.StatusComplete, session.Patch{Jobs: &jobs}); err != nil {
		o.markFailed(ctx, s.ID)
		return 0, fmt.Errorf("failed to store search results: %w", err)
	}

	o.logger.Info("Session complete",
		slog.String("session_id", s.ID),
		slog.Int("jobs", len(jobs)),
	)

	s.Jobs = jobs
	o.notifyOverflow(ctx, s)
	return len(jobs), nil
}

// Results serves the results page. A paid session that never finished its
// search (lost webhook, crash mid-pipeline) is healed synchronously here.
func (o *Orchestrator) Results(ctx context.Context, sessionID string) (session.Session, error) {
	s, err := o.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return o.backfill(ctx, sessionID)
	}
	if err != nil {
		return session.Session{}, err
	}

	if o.isStuck(s) {
		if err := o.heal(ctx, s); err != nil {
			return session.Session{}, err
		}
		return o.store.Get(ctx, sessionID)
	}

	return s, nil
}

// heal finishes a paid session whose pipeline never ran to completion. A
// session with no recorded payment event has its payment confirmed with
// the gateway first; one that already recorded the event crashed mid-run
// and just needs the tail replayed.
func (o *Orchestrator) heal(ctx context.Context, s session.Session) error {
	if s.PaymentEventID == "" {
		if o.gateway == nil {
			return nil
		}
		event, err := o.gateway.FindCheckoutBySession(ctx, s.ID)
		if errors.Is(err, payment.ErrCheckoutNotFound) {
			// Never paid; nothing to heal.
			return nil
		}
		if err != nil {
			return err
		}
		_, err = o.HandlePaymentEvent(ctx, event)
		return err
	}

	o.logger.Warn("Healing stuck session on results read",
		slog.String("session_id", s.ID),
		slog.String("status", string(s.Status)),
	)

	if s.Status != session.StatusProcessing {
		if err := o.transition(ctx, s.ID, s.Status, session.StatusProcessing, session.Patch{}); err != nil {
			return fmt.Errorf("failed to mark session processing: %w", err)
		}
	}
	_, err := o.runPipeline(ctx, s)
	return err
}

// ResolveCheckout maps a provider checkout ID back to the session, for
// clients landing on the results page straight from the payment redirect.
func (o *Orchestrator) ResolveCheckout(ctx context.Context, checkoutSessionID string) (session.Session, error) {
	event, err := o.gateway.LookupCheckout(ctx, checkoutSessionID)
	if err != nil {
		return session.Session{}, err
	}
	return o.Results(ctx, event.SessionID)
}

// reconstruct rebuilds a lost session from checkout metadata. Without an
// embedded profile there is nothing to search on, so the event is
// unservable.
func (o *Orchestrator) reconstruct(ctx context.Context, event payment.Event) (session.Session, error) {
	if event.Profile == nil {
		return session.Session{}, fmt.Errorf("session %s: %w", event.SessionID, session.ErrSessionNotFound)
	}

	o.logger.Warn("Reconstructing session from checkout metadata",
		slog.String("session_id", event.SessionID),
	)

	s := session.Session{
		ID:        event.SessionID,
		Email:     event.Email,
		Profile:   event.Profile,
		Status:    session.StatusPaid,
		CreatedAt: o.now(),
	}
	if err := o.store.Put(ctx, s); err != nil {
		return session.Session{}, fmt.Errorf("failed to store reconstructed session: %w", err)
	}
	return s, nil
}

func (o *Orchestrator) runSearch(ctx context.Context, s session.Session) ([]session.Job, error) {
	profile := session.Profile{}
	if s.Profile != nil {
		profile = *s.Profile
	}
	jobs, err := o.engine.Search(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("job search failed for session %s: %w", s.ID, err)
	}
	return jobs, nil
}

// backfill serves a results request for a session the store no longer
// holds: find its paid checkout, reconstruct, and run the pipeline
// synchronously.
func (o *Orchestrator) backfill(ctx context.Context, sessionID string) (session.Session, error) {
	if o.gateway == nil {
		return session.Session{}, fmt.Errorf("session %s: %w", sessionID, session.ErrSessionNotFound)
	}

	event, err := o.gateway.FindCheckoutBySession(ctx, sessionID)
	if errors.Is(err, payment.ErrCheckoutNotFound) {
		return session.Session{}, fmt.Errorf("session %s: %w", sessionID, session.ErrSessionNotFound)
	}
	if err != nil {
		return session.Session{}, err
	}

	if _, err := o.HandlePaymentEvent(ctx, event); err != nil {
		return session.Session{}, err
	}
	return o.store.Get(ctx, sessionID)
}

// notifyOverflow emails the jobs that don't fit on screen. Failure is
// logged, never propagated; the on-screen results already shipped.
func (o *Orchestrator) notifyOverflow(ctx context.Context, s session.Session) {
	if o.notifier == nil || s.Email == "" || s.EmailNotified || len(s.Jobs) <= OnScreenJobs {
		return
	}

	overflow := s.Jobs[OnScreenJobs:]
	id, err := o.notifier.Send(ctx, notify.Notification{
		SessionID: s.ID,
		Email:     s.Email,
		Jobs:      overflow,
	})
	if err != nil {
		o.logger.Error("Failed to send notification email",
			slog.String("session_id", s.ID),
			slog.Any("error", err),
		)
		return
	}

	if o.queued {
		// The message only reached the queue; the consumer sets
		// EmailNotified once the email actually goes out. Setting it
		// here would make the consumer skip the send.
		o.logger.Info("Overflow jobs queued for delivery",
			slog.String("session_id", s.ID),
			slog.String("message_id", id),
			slog.Int("jobs", len(overflow)),
		)
		return
	}

	notified := true
	if err := o.store.Patch(ctx, s.ID, session.Patch{EmailNotified: &notified}); err != nil {
		o.logger.Error("Failed to record email notification",
			slog.String("session_id", s.ID),
			slog.Any("error", err),
		)
		return
	}

	o.logger.Info("Overflow jobs emailed",
		slog.String("session_id", s.ID),
		slog.String("message_id", id),
		slog.Int("jobs", len(overflow)),
	)
}

// transition patches the session's status after checking the move against
// the state machine. Extra fields ride along in the same patch.
func (o *Orchestrator) transition(ctx context.Context, id string, from, to session.Status, p session.Patch) error {
	if !session.IsTransitionAllowed(from, to) {
		return fmt.Errorf("session %s: %w: %s to %s", id, session.ErrInvalidTransition, from, to)
	}
	p.Status = &to
	return o.store.Patch(ctx, id, p)
}

// checkDuplicate reports a redelivered or already-served payment event.
func checkDuplicate(s session.Session, event payment.Event) error {
	if s.PaymentEventID == event.ID || (s.Status == session.StatusComplete && len(s.Jobs) > 0) {
		return session.ErrDuplicateEvent
	}
	return nil
}

// markFailed is best effort; a session must never sit in processing after
// the pipeline has given up on it.
func (o *Orchestrator) markFailed(ctx context.Context, sessionID string) {
	if err := o.transition(ctx, sessionID, session.StatusProcessing, session.StatusFailed, session.Patch{}); err != nil {
		o.logger.Error("Failed to mark session failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}
}

// isStuck reports whether a session may have been paid for without its
// search ever completing: it has a profile, no jobs, and is not in a
// terminal state. A pending session counts; heal confirms payment with
// the gateway before doing any work on it.
func (o *Orchestrator) isStuck(s session.Session) bool {
	if s.Profile == nil || len(s.Jobs) > 0 {
		return false
	}
	return !session.IsTerminal(s.Status)
}

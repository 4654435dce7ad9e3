package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/orchestrator"
	"github.com/jobmatch/jobmatch-be/internal/payment"
	"github.com/jobmatch/jobmatch-be/internal/session"
	"github.com/jobmatch/jobmatch-be/internal/store"
)

type fakeNotifier struct {
	sends int
	last  notify.Notification
	err   error
}

func (f *fakeNotifier) Send(_ context.Context, n notify.Notification) (string, error) {
	f.sends++
	f.last = n
	if f.err != nil {
		return "", f.err
	}
	return "msg_123", nil
}

func newTestWorker(st store.SessionStore, notifier notify.Notifier) *Worker {
	return NewWorker(&Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notifier:    notifier,
		Store:       st,
		Concurrency: 1,
		JobTimeout:  5 * time.Second,
	})
}

func testNotification(sessionID string) *deliveryMessage {
	return &deliveryMessage{
		Notification: notify.Notification{
			SessionID: sessionID,
			Email:     "user@example.com",
			Jobs:      []session.Job{{ID: "j1", Title: "Engineer", URL: "https://example.com/1"}},
		},
		DeliveryTag: 1,
	}
}

func TestProcessNotification_DeliversAndMarksSession(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), session.Session{
		ID:        "s1",
		Email:     "user@example.com",
		Status:    session.StatusComplete,
		CreatedAt: time.Now(),
	}))

	notifier := &fakeNotifier{}
	w := newTestWorker(st, notifier)

	err := w.processNotification(context.Background(), testNotification("s1"))
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.sends)

	s, err := st.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, s.EmailNotified)
}

func TestProcessNotification_SkipsAlreadyNotified(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), session.Session{
		ID:            "s1",
		Email:         "user@example.com",
		Status:        session.StatusComplete,
		EmailNotified: true,
		CreatedAt:     time.Now(),
	}))

	notifier := &fakeNotifier{}
	w := newTestWorker(st, notifier)

	err := w.processNotification(context.Background(), testNotification("s1"))
	require.NoError(t, err)
	assert.Zero(t, notifier.sends)
}

func TestProcessNotification_SendsWhenSessionExpired(t *testing.T) {
	// The notification payload carries the jobs; a session that expired
	// before delivery still gets its email.
	notifier := &fakeNotifier{}
	w := newTestWorker(store.NewMemoryStore(), notifier)

	err := w.processNotification(context.Background(), testNotification("gone"))
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.sends)
}

func TestProcessNotification_DeliveryFailureIsRetryable(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), session.Session{
		ID:        "s1",
		Email:     "user@example.com",
		Status:    session.StatusComplete,
		CreatedAt: time.Now(),
	}))

	notifier := &fakeNotifier{err: notify.ErrDeliveryFailed}
	w := newTestWorker(st, notifier)

	err := w.processNotification(context.Background(), testNotification("s1"))
	require.Error(t, err)

	var retryable *session.RetryableError
	assert.True(t, errors.As(err, &retryable))

	s, getErr := st.Get(context.Background(), "s1")
	require.NoError(t, getErr)
	assert.False(t, s.EmailNotified)
}

func TestProcessNotification_QueuedOverflowDeliveredOnce(t *testing.T) {
	// Full async path: the orchestrator enqueues the overflow email and the
	// consumer delivers it. Exactly one email goes out, and only the
	// consumer flips EmailNotified.
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), session.Session{
		ID:        "s1",
		Email:     "user@example.com",
		Status:    session.StatusPending,
		Profile:   &session.Profile{JobTitles: []string{"Software Engineer"}},
		CreatedAt: time.Now(),
	}))

	jobs := make([]session.Job, 0, 8)
	for i := 0; i < 8; i++ {
		url := fmt.Sprintf("https://example.com/jobs/%d", i)
		jobs = append(jobs, session.Job{ID: session.JobID(url), Title: "Engineer", URL: url})
	}

	queue := &fakeNotifier{}
	o := orchestrator.New(orchestrator.Config{
		Store:          st,
		Engine:         staticEngine(jobs),
		Notifier:       queue,
		QueuedDelivery: true,
	})

	_, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, 1, queue.sends)

	s, err := st.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.False(t, s.EmailNotified, "flag belongs to the consumer, not the producer")

	// Drain the queued message through the consumer.
	sender := &fakeNotifier{}
	w := newTestWorker(st, sender)
	require.NoError(t, w.processNotification(context.Background(), &deliveryMessage{
		Notification: queue.last,
		DeliveryTag:  1,
	}))

	assert.Equal(t, 1, sender.sends)
	assert.Len(t, sender.last.Jobs, len(jobs)-orchestrator.OnScreenJobs)

	s, err = st.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, s.EmailNotified)

	// A redelivered copy of the same message is dropped.
	require.NoError(t, w.processNotification(context.Background(), &deliveryMessage{
		Notification: queue.last,
		DeliveryTag:  2,
	}))
	assert.Equal(t, 1, sender.sends)
}

type staticEngine []session.Job

func (e staticEngine) Search(context.Context, session.Profile) ([]session.Job, error) {
	return []session.Job(e), nil
}

func TestShouldRequeue(t *testing.T) {
	w := newTestWorker(store.NewMemoryStore(), &fakeNotifier{})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid address is permanent", notify.ErrInvalidAddress, false},
		{"missing session is permanent", session.ErrSessionNotFound, false},
		{"retryable wrapper requeues", session.NewRetryableError(errors.New("boom")), true},
		{"unknown error does not requeue", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldRequeue(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	w := newTestWorker(store.NewMemoryStore(), &fakeNotifier{})

	t.Run("delivery failure becomes retryable", func(t *testing.T) {
		var retryable *session.RetryableError
		assert.True(t, errors.As(w.classify(notify.ErrDeliveryFailed), &retryable))
	})

	t.Run("timeout becomes retryable", func(t *testing.T) {
		var retryable *session.RetryableError
		assert.True(t, errors.As(w.classify(context.DeadlineExceeded), &retryable))
	})

	t.Run("invalid address passes through", func(t *testing.T) {
		err := w.classify(notify.ErrInvalidAddress)
		assert.ErrorIs(t, err, notify.ErrInvalidAddress)
		var retryable *session.RetryableError
		assert.False(t, errors.As(err, &retryable))
	})
}

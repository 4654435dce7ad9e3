package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/payment"
	"github.com/jobmatch/jobmatch-be/internal/session"
	"github.com/jobmatch/jobmatch-be/internal/store"
)

type fakeEngine struct {
	searches atomic.Int32
	jobs     []session.Job
	err      error
}

func (f *fakeEngine) Search(ctx context.Context, profile session.Profile) ([]session.Job, error) {
	f.searches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}

type fakeNotifier struct {
	sends atomic.Int32
	last  notify.Notification
	err   error
}

func (f *fakeNotifier) Send(ctx context.Context, n notify.Notification) (string, error) {
	f.sends.Add(1)
	f.last = n
	if f.err != nil {
		return "", f.err
	}
	return "msg_test", nil
}

type fakeGateway struct {
	payment.Gateway
	bySession map[string]payment.Event
}

func (f *fakeGateway) FindCheckoutBySession(ctx context.Context, sessionID string) (payment.Event, error) {
	if ev, ok := f.bySession[sessionID]; ok {
		return ev, nil
	}
	return payment.Event{}, payment.ErrCheckoutNotFound
}

func makeJobs(n int) []session.Job {
	jobs := make([]session.Job, 0, n)
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://boards.greenhouse.io/acme/%d", i)
		jobs = append(jobs, session.Job{
			ID:      session.JobID(url),
			Title:   "Software Engineer",
			Company: "Acme",
			URL:     url,
			Source:  session.SourceGreenhouse,
		})
	}
	return jobs
}

func seedSession(t *testing.T, st store.SessionStore, s session.Session) {
	t.Helper()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Status == "" {
		s.Status = session.StatusPending
	}
	require.NoError(t, st.Put(context.Background(), s))
}

func newTestOrchestrator(engine *fakeEngine, notifier *fakeNotifier, gateway payment.Gateway) (*Orchestrator, *store.MemoryStore) {
	st := store.NewMemoryStore()
	o := New(Config{
		Store:    st,
		Engine:   engine,
		Notifier: notifier,
		Gateway:  gateway,
	})
	return o, st
}

func TestHandlePaymentEvent_HappyPath(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(8)}
	notifier := &fakeNotifier{}
	o, st := newTestOrchestrator(engine, notifier, nil)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	out, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, session.StatusComplete, out.Status)
	assert.Equal(t, 8, out.Jobs)

	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, s.Status)
	assert.Equal(t, "evt-1", s.PaymentEventID)
	assert.True(t, s.EmailNotified)
	assert.Len(t, s.Jobs, 8)

	// Only the overflow beyond the on-screen page is emailed.
	assert.Equal(t, int32(1), notifier.sends.Load())
	assert.Len(t, notifier.last.Jobs, 3)
	assert.Equal(t, "user@example.com", notifier.last.Email)
}

func TestHandlePaymentEvent_Idempotent(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(8)}
	notifier := &fakeNotifier{}
	o, st := newTestOrchestrator(engine, notifier, nil)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	event := payment.Event{ID: "evt-1", SessionID: "sess-1"}
	_, err := o.HandlePaymentEvent(context.Background(), event)
	require.NoError(t, err)

	// Redelivery of the same event: one search, one email, no rewrites.
	out, err := o.HandlePaymentEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Equal(t, int32(1), engine.searches.Load())
	assert.Equal(t, int32(1), notifier.sends.Load())
}

func TestHandlePaymentEvent_DistinctEventOnCompleteSessionIsDuplicate(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(3)}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, nil)

	seedSession(t, st, session.Session{
		ID:             "sess-1",
		Status:         session.StatusComplete,
		Jobs:           makeJobs(3),
		PaymentEventID: "evt-old",
	})

	out, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-new", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Zero(t, engine.searches.Load())
}

func TestHandlePaymentEvent_ReconstructsFromMetadata(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(2)}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, nil)

	out, err := o.HandlePaymentEvent(context.Background(), payment.Event{
		ID:        "evt-1",
		SessionID: "sess-lost",
		Email:     "user@example.com",
		Profile:   &session.Profile{JobTitles: []string{"Backend Developer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, out.Status)

	s, err := st.Get(context.Background(), "sess-lost")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", s.Email)
	assert.Len(t, s.Jobs, 2)
}

func TestHandlePaymentEvent_UnreconstructableSession(t *testing.T) {
	engine := &fakeEngine{}
	o, _ := newTestOrchestrator(engine, &fakeNotifier{}, nil)

	_, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "gone"})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Zero(t, engine.searches.Load())
}

func TestHandlePaymentEvent_ZeroJobsIsTerminalComplete(t *testing.T) {
	engine := &fakeEngine{jobs: nil}
	notifier := &fakeNotifier{}
	o, st := newTestOrchestrator(engine, notifier, nil)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Profile: &session.Profile{JobTitles: []string{"Underwater Welder"}},
	})

	out, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, out.Status)
	assert.Zero(t, out.Jobs)
	assert.Zero(t, notifier.sends.Load())

	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, s.Status)
}

func TestHandlePaymentEvent_SearchFailureMarksFailed(t *testing.T) {
	engine := &fakeEngine{err: errors.New("every provider down")}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, nil)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	_, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "sess-1"})
	require.Error(t, err)

	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, s.Status)
}

func TestHandlePaymentEvent_FewJobsSkipsEmail(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(4)}
	notifier := &fakeNotifier{}
	o, st := newTestOrchestrator(engine, notifier, nil)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	_, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "sess-1"})
	require.NoError(t, err)

	assert.Zero(t, notifier.sends.Load())
	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, s.EmailNotified)
}

func TestHandlePaymentEvent_QueuedDeliveryLeavesFlagToConsumer(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(8)}
	notifier := &fakeNotifier{}
	st := store.NewMemoryStore()
	o := New(Config{
		Store:          st,
		Engine:         engine,
		Notifier:       notifier,
		QueuedDelivery: true,
	})

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	_, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), notifier.sends.Load())

	// Send only enqueued the message. The consumer records EmailNotified
	// after the email actually goes out; flipping it here would make the
	// consumer treat the message as already delivered and drop it.
	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, s.EmailNotified)
}

func TestHandlePaymentEvent_TerminalSessionRejectsReplay(t *testing.T) {
	engine := &fakeEngine{}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, nil)

	seedSession(t, st, session.Session{
		ID:             "sess-1",
		Status:         session.StatusFailed,
		Profile:        &session.Profile{JobTitles: []string{"Software Engineer"}},
		PaymentEventID: "evt-old",
	})

	// A failed session is terminal; a late or replayed event must not
	// restart the pipeline.
	_, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-new", SessionID: "sess-1"})
	require.ErrorIs(t, err, session.ErrInvalidTransition)
	assert.Zero(t, engine.searches.Load())

	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, s.Status)
}

func TestHandlePaymentEvent_NotificationFailureDoesNotFailPipeline(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(10)}
	notifier := &fakeNotifier{err: errors.New("provider rejected the send")}
	o, st := newTestOrchestrator(engine, notifier, nil)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	out, err := o.HandlePaymentEvent(context.Background(), payment.Event{ID: "evt-1", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, out.Status)

	s, err := st.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, s.EmailNotified)
}

func TestResults_CompleteSession(t *testing.T) {
	o, st := newTestOrchestrator(&fakeEngine{}, &fakeNotifier{}, nil)

	seedSession(t, st, session.Session{
		ID:     "sess-1",
		Status: session.StatusComplete,
		Jobs:   makeJobs(7),
	})

	s, err := o.Results(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, s.Status)
	assert.Len(t, s.Jobs, 7)
}

func TestResults_HealsSessionStuckInProcessing(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(6)}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, nil)

	// Crashed after recording the event but before the search finished.
	seedSession(t, st, session.Session{
		ID:             "sess-1",
		Email:          "user@example.com",
		Profile:        &session.Profile{JobTitles: []string{"Software Engineer"}},
		Status:         session.StatusProcessing,
		PaymentEventID: "evt-1",
	})

	s, err := o.Results(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, s.Status)
	assert.Len(t, s.Jobs, 6)
	assert.Equal(t, int32(1), engine.searches.Load())
}

func TestResults_PendingUnpaidSessionNotHealed(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(6)}
	gateway := &fakeGateway{bySession: map[string]payment.Event{}}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, gateway)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Status:  session.StatusPending,
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	s, err := o.Results(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, s.Status)
	assert.Zero(t, engine.searches.Load())
}

func TestResults_HealsPendingSessionWithPaidCheckout(t *testing.T) {
	// The webhook never arrived but the customer did pay; the results
	// read confirms the checkout with the gateway and finishes the job.
	engine := &fakeEngine{jobs: makeJobs(2)}
	gateway := &fakeGateway{bySession: map[string]payment.Event{
		"sess-1": {ID: "cs_456", SessionID: "sess-1", Email: "user@example.com"},
	}}
	o, st := newTestOrchestrator(engine, &fakeNotifier{}, gateway)

	seedSession(t, st, session.Session{
		ID:      "sess-1",
		Email:   "user@example.com",
		Status:  session.StatusPending,
		Profile: &session.Profile{JobTitles: []string{"Software Engineer"}},
	})

	s, err := o.Results(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, s.Status)
	assert.Len(t, s.Jobs, 2)
}

func TestResults_BackfillsMissingSessionFromGateway(t *testing.T) {
	engine := &fakeEngine{jobs: makeJobs(3)}
	gateway := &fakeGateway{bySession: map[string]payment.Event{
		"sess-lost": {
			ID:        "cs_123",
			SessionID: "sess-lost",
			Email:     "user@example.com",
			Profile:   &session.Profile{JobTitles: []string{"Backend Developer"}},
		},
	}}
	o, _ := newTestOrchestrator(engine, &fakeNotifier{}, gateway)

	s, err := o.Results(context.Background(), "sess-lost")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, s.Status)
	assert.Len(t, s.Jobs, 3)
}

func TestResults_MissingEverywhere(t *testing.T) {
	gateway := &fakeGateway{bySession: map[string]payment.Event{}}
	o, _ := newTestOrchestrator(&fakeEngine{}, &fakeNotifier{}, gateway)

	_, err := o.Results(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

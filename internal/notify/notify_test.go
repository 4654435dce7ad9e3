package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

func sampleJobs() []session.Job {
	return []session.Job{
		{
			ID:       "abc123def456",
			Title:    "Senior Software Engineer",
			Company:  "Acme",
			Location: "Austin, TX",
			URL:      "https://boards.greenhouse.io/acme/1",
			Salary:   "$140k - $180k",
			Source:   session.SourceGreenhouse,
		},
		{
			ID:       "def456abc123",
			Title:    "Backend Developer",
			Company:  "Initech",
			Location: "Remote",
			URL:      "https://jobs.lever.co/initech/2",
			Source:   session.SourceLever,
		},
	}
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("user@example.com"))
	assert.NoError(t, ValidateAddress("first.last+tag@sub.example.co"))

	for _, bad := range []string{"", "no-at-sign", "two@@example.com", "user@", "@example.com", "user@nodot", "spa ce@example.com"} {
		assert.ErrorIs(t, ValidateAddress(bad), ErrInvalidAddress, bad)
	}
}

func TestRenderEmail(t *testing.T) {
	jobs := sampleJobs()

	subject, html, err := RenderEmail(jobs)
	require.NoError(t, err)

	assert.Equal(t, "2 more job matches for you", subject)
	assert.Contains(t, html, "Senior Software Engineer")
	assert.Contains(t, html, "Initech")
	assert.Contains(t, html, "https://jobs.lever.co/initech/2")
	assert.Contains(t, html, "$140k - $180k")
	// Jobs are numbered starting at 1.
	assert.Contains(t, html, "1. Senior Software Engineer")
	assert.Contains(t, html, "2. Backend Developer")
}

func TestRenderEmail_SingularSubject(t *testing.T) {
	subject, _, err := RenderEmail(sampleJobs()[:1])
	require.NoError(t, err)
	assert.Equal(t, "1 more job match for you", subject)
}

func newTestNotifier(apiURL string) *ResendNotifier {
	n := NewResendNotifier("test-key", "JobMatch <jobs@example.com>", nil)
	n.apiURL = apiURL
	n.client = &http.Client{Timeout: time.Second}
	n.backoff = time.Millisecond
	return n
}

func TestResendSend_Success(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "msg_123"}`))
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	id, err := n.Send(context.Background(), Notification{
		SessionID: "sess-1",
		Email:     "user@example.com",
		Jobs:      sampleJobs(),
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestResendSend_InvalidAddressFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	_, err := n.Send(context.Background(), Notification{Email: "not-an-email", Jobs: sampleJobs()})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Zero(t, calls.Load())
}

func TestResendSend_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "invalid from address"}`))
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	_, err := n.Send(context.Background(), Notification{Email: "user@example.com", Jobs: sampleJobs()})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "422"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestResendSend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": "msg_retry"}`))
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	id, err := n.Send(context.Background(), Notification{Email: "user@example.com", Jobs: sampleJobs()})
	require.NoError(t, err)
	assert.Equal(t, "msg_retry", id)
	assert.Equal(t, int32(2), calls.Load())
}

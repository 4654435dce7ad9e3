package store

import (
	"context"
	"sync"
	"time"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

// MemoryStore is an in-process SessionStore used by unit tests and local
// development. Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]session.Session),
		now:      time.Now,
	}
}

// SetClock overrides the store's clock, for expiry tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Put(ctx context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *MemoryStore) Patch(ctx context.Context, id string, p session.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.getLocked(id)
	if err != nil {
		return err
	}
	m.sessions[id] = p.Apply(s)
	return nil
}

// Len returns the number of live sessions, for monitoring and tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// getLocked looks up a session and evicts it when past its TTL. Caller
// holds the write lock.
func (m *MemoryStore) getLocked(id string) (session.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	if remainingTTL(s.CreatedAt, m.now()) <= 0 {
		delete(m.sessions, id)
		return session.Session{}, session.ErrSessionNotFound
	}
	return s, nil
}

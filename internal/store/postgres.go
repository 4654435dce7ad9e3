package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

// PostgresStore is a SessionStore backend over a single sessions table
// (id, payload JSONB, created_at, expires_at). Postgres has no key expiry,
// so reads filter on expires_at and worker-service runs PurgeExpired on a
// cron schedule.
//
// Schema:
//
//	CREATE TABLE sessions (
//	    id         TEXT PRIMARY KEY,
//	    payload    JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-connected database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, sess session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.ID, err)
	}

	// Upsert keyed by session ID keeps concurrent reconstruction writes
	// idempotent.
	query := `
		INSERT INTO sessions (id, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload
	`

	_, err = s.db.ExecContext(ctx, query, sess.ID, payload, sess.CreatedAt, sess.CreatedAt.Add(TTL))
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (session.Session, error) {
	var payload []byte
	query := `SELECT payload FROM sessions WHERE id = $1 AND expires_at > NOW()`

	err := s.db.GetContext(ctx, &payload, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, session.ErrSessionNotFound
		}
		return session.Session{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	var sess session.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return session.Session{}, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	if _, err := session.ParseStatus(string(sess.Status)); err != nil {
		return session.Session{}, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return sess, nil
}

func (s *PostgresStore) Patch(ctx context.Context, id string, p session.Patch) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(p.Apply(sess))
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", id, err)
	}

	query := `UPDATE sessions SET payload = $1 WHERE id = $2 AND expires_at > NOW()`
	result, err := s.db.ExecContext(ctx, query, payload, id)
	if err != nil {
		return fmt.Errorf("failed to patch session %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Expired between the read and the write.
		return session.ErrSessionNotFound
	}
	return nil
}

// PurgeExpired deletes sessions past their retention window and returns how
// many were removed. Worker-service calls this on a cron schedule.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	return result.RowsAffected()
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const redisKeyPrefix = "jobmatch:session:"

// RedisStore is the production SessionStore. Each session is one JSON value
// whose key expires with the session TTL, so Redis enforces the retention
// window natively.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Put(ctx context.Context, s session.Session) error {
	remaining := remainingTTL(s.CreatedAt, time.Now())
	if remaining <= 0 {
		// Already past the retention window; writing would create a
		// record Get could never return.
		return nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}

	if err := r.rdb.Set(ctx, redisKeyPrefix+s.ID, payload, remaining).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (session.Session, error) {
	payload, err := r.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, session.ErrSessionNotFound
		}
		return session.Session{}, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var s session.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return session.Session{}, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	if _, err := session.ParseStatus(string(s.Status)); err != nil {
		return session.Session{}, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisStore) Patch(ctx context.Context, id string, p session.Patch) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	merged := p.Apply(s)
	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", id, err)
	}

	// Recompute the expiry from CreatedAt rather than SET with KeepTTL:
	// if the key expired between the read and the write, KeepTTL would
	// recreate it with no TTL at all. Patches never extend the window.
	remaining := remainingTTL(merged.CreatedAt, time.Now())
	if remaining <= 0 {
		return session.ErrSessionNotFound
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+id, payload, remaining).Err(); err != nil {
		return fmt.Errorf("failed to patch session %s: %w", id, err)
	}
	return nil
}

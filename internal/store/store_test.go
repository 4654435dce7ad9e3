package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingTTL(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh session has the full window", func(t *testing.T) {
		assert.Equal(t, TTL, remainingTTL(created, created))
	})

	t.Run("window shrinks with elapsed time, not access", func(t *testing.T) {
		assert.Equal(t, 30*time.Minute, remainingTTL(created, created.Add(TTL-30*time.Minute)))
	})

	t.Run("expired session has no time left", func(t *testing.T) {
		// Rewrites keyed on this must refuse rather than resurrect the
		// record with a fresh or unbounded expiry.
		assert.LessOrEqual(t, remainingTTL(created, created.Add(TTL)), time.Duration(0))
		assert.Negative(t, remainingTTL(created, created.Add(TTL+time.Second)))
	})
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "paid", "processing", "complete", "failed"} {
		got, err := ParseStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}

	_, err := ParseStatus("refunded")
	assert.Error(t, err)
}

func TestIsTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusComplete, false},
		{StatusPaid, StatusProcessing, true},
		{StatusPaid, StatusFailed, true},
		{StatusPaid, StatusPending, false},
		{StatusProcessing, StatusComplete, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPaid, false},
		{StatusComplete, StatusFailed, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransitionAllowed(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusPaid))
	assert.False(t, IsTerminal(StatusProcessing))
	assert.True(t, IsTerminal(StatusComplete))
	assert.True(t, IsTerminal(StatusFailed))
}

// Session status state machine.
//
// Valid status graph:
//
//	pending -> paid -> processing -> complete
//	    |        |          |
//	    +--------+----------+------> failed
//
// pending may also move straight to processing when the payment event is
// the first thing the system hears about a session (reconstruction).
// complete and failed are terminal; a session only leaves them by expiry.
package session

import "fmt"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusProcessing, StatusFailed},
	StatusPaid:       {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusComplete, StatusFailed},
	// complete and failed are terminal, no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusPaid, StatusProcessing, StatusComplete, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown session status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine. Transitions are monotonic; there are no regressions.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status has no outgoing transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

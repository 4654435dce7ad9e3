package search

import (
	"context"
	"errors"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

var (
	// ErrNoProviders is a fatal configuration error: the engine cannot run
	// without at least one search provider.
	ErrNoProviders = errors.New("no search providers configured")
)

// Query is one provider request. Queries are kept deliberately simple (a
// title, optionally a location) because over-constrained queries with title,
// skills, and location at once reliably return zero results.
type Query struct {
	Title    string
	Location string
	Limit    int
	JobTypes []string
}

// Provider is an external job-search data source queried by title and
// location. Implementations normalize raw results into session.Job.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]session.Job, error)
}

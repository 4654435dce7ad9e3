package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

// fakeProvider replays canned results and records every query it receives.
type fakeProvider struct {
	name    string
	queries []Query
	// respond decides the result set per query; when nil, jobsPerQuery
	// distinct jobs are fabricated from the query title.
	respond      func(q Query) ([]session.Job, error)
	jobsPerQuery int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, q Query) ([]session.Job, error) {
	f.queries = append(f.queries, q)
	if f.respond != nil {
		return f.respond(q)
	}
	jobs := make([]session.Job, 0, f.jobsPerQuery)
	for i := 0; i < f.jobsPerQuery; i++ {
		url := fmt.Sprintf("https://boards.greenhouse.io/%s/%d", q.Title, i)
		jobs = append(jobs, session.Job{
			ID:       session.JobID(url),
			Title:    q.Title,
			Company:  "Acme",
			Location: "Remote",
			URL:      url,
			Source:   session.SourceGreenhouse,
		})
	}
	return jobs, nil
}

func jobFor(url string) session.Job {
	return session.Job{
		ID:       session.JobID(url),
		Title:    "Software Engineer",
		Company:  "Acme",
		Location: "Remote",
		URL:      url,
		Source:   session.SourceGreenhouse,
	}
}

func newTestEngine(t *testing.T, p Provider, maxResults, maxCalls int) *Engine {
	t.Helper()
	e, err := NewEngine(&Config{
		Providers:        []Provider{p},
		MaxResults:       maxResults,
		MaxProviderCalls: maxCalls,
	})
	require.NoError(t, err)
	return e
}

func TestNewEngine_NoProviders(t *testing.T) {
	_, err := NewEngine(&Config{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestSearch_DedupIsDeterministicFirstSeenOrder(t *testing.T) {
	// Same URL appears across responses; each unique URL must survive
	// exactly once, in first-seen order.
	duplicated := []session.Job{
		jobFor("https://boards.greenhouse.io/acme/1"),
		jobFor("https://boards.greenhouse.io/acme/2"),
		jobFor("https://boards.greenhouse.io/acme/1"),
		jobFor("https://boards.greenhouse.io/acme/3"),
		jobFor("https://boards.greenhouse.io/acme/2"),
	}
	p := &fakeProvider{name: "fake", respond: func(q Query) ([]session.Job, error) {
		return duplicated, nil
	}}
	e := newTestEngine(t, p, 25, 6)

	profile := session.Profile{JobTitles: []string{"Software Engineer"}, Location: "Austin, TX"}

	first, err := e.Search(context.Background(), profile)
	require.NoError(t, err)
	second, err := e.Search(context.Background(), profile)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, session.JobID("https://boards.greenhouse.io/acme/1"), first[0].ID)
	assert.Equal(t, session.JobID("https://boards.greenhouse.io/acme/2"), first[1].ID)
	assert.Equal(t, session.JobID("https://boards.greenhouse.io/acme/3"), first[2].ID)
	assert.Equal(t, first, second)
}

func TestSearch_RespectsCallBudget(t *testing.T) {
	// Every query returns nothing, so the engine keeps escalating; it
	// must still stop at the configured budget.
	p := &fakeProvider{name: "fake", respond: func(q Query) ([]session.Job, error) {
		return nil, nil
	}}
	e := newTestEngine(t, p, 25, 4)

	profile := session.Profile{
		JobTitles: []string{"Software Engineer", "Backend Developer", "Platform Engineer"},
		Skills:    []string{"go", "aws", "react", "python", "sql"},
		Location:  "Austin, TX",
	}

	jobs, err := e.Search(context.Background(), profile)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.LessOrEqual(t, len(p.queries), 4)
}

func TestSearch_StopsAtMaxResults(t *testing.T) {
	p := &fakeProvider{name: "fake", jobsPerQuery: 30}
	e := newTestEngine(t, p, 25, 6)

	jobs, err := e.Search(context.Background(), session.Profile{
		JobTitles: []string{"Software Engineer", "Backend Developer"},
	})
	require.NoError(t, err)
	assert.Len(t, jobs, 25)
	// Target was met by the first response; no further calls are issued.
	assert.Len(t, p.queries, 1)
}

func TestSearch_EmptyProfileUsesGenericTitles(t *testing.T) {
	p := &fakeProvider{name: "fake", jobsPerQuery: 2}
	e := newTestEngine(t, p, 25, 6)

	jobs, err := e.Search(context.Background(), session.Profile{})
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)

	require.NotEmpty(t, p.queries)
	assert.Equal(t, "Software Engineer", p.queries[0].Title)
}

func TestSearch_InferenceNotWorseThanGenericFallback(t *testing.T) {
	// A profile with skills must never yield fewer jobs than the same
	// empty profile served by the generic fallback titles.
	run := func(profile session.Profile) int {
		p := &fakeProvider{name: "fake", jobsPerQuery: 2}
		e := newTestEngine(t, p, 25, 6)
		jobs, err := e.Search(context.Background(), profile)
		require.NoError(t, err)
		return len(jobs)
	}

	withSkills := run(session.Profile{Skills: []string{"react", "node", "aws", "sql"}})
	generic := run(session.Profile{})

	assert.GreaterOrEqual(t, withSkills, generic)
}

func TestSearch_ZeroResultFallbackBroadensPrimaryTitle(t *testing.T) {
	p := &fakeProvider{name: "fake", respond: func(q Query) ([]session.Job, error) {
		if q.Title == "Principal Distributed Systems Engineer" {
			return nil, nil
		}
		return []session.Job{jobFor("https://boards.greenhouse.io/acme/" + q.Title)}, nil
	}}
	e := newTestEngine(t, p, 25, 6)

	jobs, err := e.Search(context.Background(), session.Profile{
		JobTitles: []string{"Principal Distributed Systems Engineer"},
		Location:  "Austin, TX",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)

	require.GreaterOrEqual(t, len(p.queries), 2)
	assert.Equal(t, "Principal Distributed", p.queries[1].Title)
	assert.Empty(t, p.queries[1].Location)
}

func TestSearch_ProviderErrorDoesNotAbortSearch(t *testing.T) {
	p := &fakeProvider{name: "fake", respond: func(q Query) ([]session.Job, error) {
		if q.Title == "Software Engineer" {
			return nil, errors.New("upstream 500")
		}
		return []session.Job{jobFor("https://boards.greenhouse.io/acme/" + q.Title)}, nil
	}}
	e := newTestEngine(t, p, 25, 6)

	jobs, err := e.Search(context.Background(), session.Profile{
		JobTitles: []string{"Software Engineer", "Backend Developer"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)
}

func TestSearch_SecondTierServesQueryWhenFirstTierFails(t *testing.T) {
	primary := &fakeProvider{name: "serper", respond: func(q Query) ([]session.Job, error) {
		return nil, errors.New("auth failure")
	}}
	secondary := &fakeProvider{name: "adzuna", jobsPerQuery: 3}

	e, err := NewEngine(&Config{
		Providers:        []Provider{primary, secondary},
		MaxResults:       25,
		MaxProviderCalls: 6,
	})
	require.NoError(t, err)

	jobs, err := e.Search(context.Background(), session.Profile{JobTitles: []string{"Software Engineer"}})
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)
	assert.NotEmpty(t, secondary.queries)
}

// Package search turns a parsed resume profile into a ranked, deduplicated
// list of job postings using external providers with tiered fallback.
//
// The engine escalates through three ordered phases (seed titles with the
// profile location, the same titles without it, then additional inferred
// titles) under a fixed provider-call budget, and stops as soon as the
// deduplicated result count reaches the requested maximum. Repeated runs
// over the same inputs produce the same ordering: seed order, then phase
// order, then first-seen order within a response.
package search

import (
	"context"
	"log/slog"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const (
	// DefaultMaxResults is the requested result-set size.
	DefaultMaxResults = 25

	// DefaultMaxProviderCalls bounds external calls per search so a
	// pathological zero-result profile cannot run unboundedly.
	DefaultMaxProviderCalls = 6
)

// Config assembles an Engine.
type Config struct {
	Providers        []Provider
	Titles           TitleStrategy
	MaxResults       int
	MaxProviderCalls int
	Logger           *slog.Logger
}

// Engine is the job search engine. It holds no per-search state; Search may
// be called from multiple handlers concurrently.
type Engine struct {
	providers []Provider
	titles    TitleStrategy
	maxJobs   int
	maxCalls  int
	logger    *slog.Logger
}

// NewEngine validates the configuration and builds an engine. Having no
// provider at all is a startup-time configuration error, unlike a provider
// failing at query time.
func NewEngine(cfg *Config) (*Engine, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}

	e := &Engine{
		providers: cfg.Providers,
		titles:    cfg.Titles,
		maxJobs:   cfg.MaxResults,
		maxCalls:  cfg.MaxProviderCalls,
		logger:    cfg.Logger,
	}
	if e.titles == nil {
		e.titles = KeywordTitleStrategy{}
	}
	if e.maxJobs <= 0 {
		e.maxJobs = DefaultMaxResults
	}
	if e.maxCalls <= 0 {
		e.maxCalls = DefaultMaxProviderCalls
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// searchState carries the running result set of one Search call.
type searchState struct {
	jobs  []session.Job
	seen  map[string]bool
	calls int
}

// Search runs the tiered search for a profile. Provider-level errors on a
// single query are logged and treated as zero results; Search itself only
// fails on a canceled context.
func (e *Engine) Search(ctx context.Context, profile session.Profile) ([]session.Job, error) {
	primary, extra := e.seedTitles(profile)

	e.logger.Info("Starting job search",
		slog.Any("seed_titles", primary),
		slog.Int("inferred_extra", len(extra)),
		slog.String("location", profile.Location),
	)

	st := &searchState{seen: make(map[string]bool)}

	// Phase 1: seed titles with the profile location.
	for i, seed := range primary {
		if e.done(st) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found := e.runQuery(ctx, st, Query{
			Title:    seed,
			Location: profile.Location,
			Limit:    e.maxJobs,
			JobTypes: profile.JobTypes,
		})

		// Zero-result fallback for the primary seed: one broadened
		// retry with a shortened title and no location constraint.
		if found == 0 && i == 0 && !e.done(st) {
			broad := broadenTitle(seed)
			if broad != seed || profile.Location != "" {
				e.runQuery(ctx, st, Query{Title: broad, Limit: e.maxJobs})
			}
		}
	}

	// Phase 2: drop the location filter if still short of the target.
	if profile.Location != "" {
		for _, seed := range primary {
			if e.done(st) {
				break
			}
			e.runQuery(ctx, st, Query{Title: seed, Limit: e.maxJobs, JobTypes: profile.JobTypes})
		}
	}

	// Phase 3: additional inferred titles.
	for _, seed := range extra {
		if e.done(st) {
			break
		}
		e.runQuery(ctx, st, Query{Title: seed, Limit: e.maxJobs})
	}

	jobs := st.jobs
	if len(jobs) > e.maxJobs {
		jobs = jobs[:e.maxJobs]
	}

	e.logger.Info("Job search finished",
		slog.Int("jobs", len(jobs)),
		slog.Int("provider_calls", st.calls),
	)
	return jobs, nil
}

// done reports whether the search should stop issuing queries: target
// reached or budget exhausted.
func (e *Engine) done(st *searchState) bool {
	return len(st.jobs) >= e.maxJobs || st.calls >= e.maxCalls
}

// runQuery sends one query through the provider tiers in order, stopping
// at the first provider that yields results. Every provider call counts
// against the budget. Returns the raw result count of the responding
// provider.
func (e *Engine) runQuery(ctx context.Context, st *searchState, q Query) int {
	for _, provider := range e.providers {
		if st.calls >= e.maxCalls {
			return 0
		}
		st.calls++

		jobs, err := provider.Search(ctx, q)
		if err != nil {
			// One failed query never aborts the search; the next
			// tier (or seed title) still runs.
			e.logger.Warn("Provider query failed",
				slog.String("provider", provider.Name()),
				slog.String("title", q.Title),
				slog.String("error", err.Error()),
			)
			continue
		}

		if len(jobs) == 0 {
			continue
		}

		for _, job := range jobs {
			if st.seen[job.ID] {
				continue
			}
			st.seen[job.ID] = true
			st.jobs = append(st.jobs, job)
			if len(st.jobs) >= e.maxJobs {
				break
			}
		}
		return len(jobs)
	}
	return 0
}

// seedTitles derives the primary seed list and the phase-3 extras. Profile
// titles are preferred; inference fills in when they are unusable; the
// generic set is the last resort.
func (e *Engine) seedTitles(p session.Profile) (primary, extra []string) {
	primary = filterSeedTitles(p.JobTitles)

	inferred := e.titles.InferTitles(p)

	if len(primary) == 0 {
		if len(inferred) == 0 {
			return append([]string{}, genericTitles...), nil
		}
		if len(inferred) <= maxPrimarySeeds {
			return inferred, nil
		}
		return inferred[:maxPrimarySeeds], inferred[maxPrimarySeeds:]
	}

	seen := make(map[string]bool, len(primary))
	for _, t := range primary {
		seen[t] = true
	}
	for _, t := range inferred {
		if !seen[t] {
			extra = append(extra, t)
		}
	}
	return primary, extra
}

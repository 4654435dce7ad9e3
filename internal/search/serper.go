package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const serperAPIURL = "https://google.serper.dev/search"

// jobBoardSites are the ATS domains searched via Google site: operators.
var jobBoardSites = []string{
	"jobs.ashbyhq.com",
	"boards.greenhouse.io",
	"jobs.lever.co",
	"jobs.workable.com",
	"recruiting.paylocity.com",
	"jobs.smartrecruiters.com",
}

// SerperProvider searches job-board postings through the Serper Google
// Search API. It is the first tier: broad coverage across six ATS domains.
type SerperProvider struct {
	apiKey string
	apiURL string
	client *http.Client
}

// NewSerperProvider returns a provider authenticated with apiKey.
func NewSerperProvider(apiKey string) *SerperProvider {
	return &SerperProvider{
		apiKey: apiKey,
		apiURL: serperAPIURL,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *SerperProvider) Name() string {
	return "serper"
}

type serperRequest struct {
	Q        string `json:"q"`
	Num      int    `json:"num"`
	GL       string `json:"gl"`
	Location string `json:"location,omitempty"`
}

type serperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
}

// Search issues one Google query of the form
//
//	(site:X OR site:Y ...) "title"
//
// with the location passed as a separate search parameter. Skills and
// industries are never added; they over-constrain the query.
func (p *SerperProvider) Search(ctx context.Context, q Query) ([]session.Job, error) {
	body, err := json.Marshal(serperRequest{
		Q:        p.buildQuery(q.Title),
		Num:      q.Limit,
		GL:       "us",
		Location: q.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper API returned status %d: %s", resp.StatusCode, errText)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse serper response: %w", err)
	}

	jobs := make([]session.Job, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		jobs = append(jobs, convertSerperResult(r))
	}
	return jobs, nil
}

func (p *SerperProvider) buildQuery(title string) string {
	var sb bytes.Buffer
	sb.WriteString("(")
	for i, site := range jobBoardSites {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("site:")
		sb.WriteString(site)
	}
	sb.WriteString(")")
	if title != "" {
		sb.WriteString(" \"")
		sb.WriteString(title)
		sb.WriteString("\"")
	}
	return sb.String()
}

// convertSerperResult normalizes one Google result into a Job via the
// extraction heuristics in convert.go.
func convertSerperResult(r serperResult) session.Job {
	return session.Job{
		ID:          session.JobID(r.Link),
		Title:       extractJobTitle(r.Title),
		Company:     extractCompanyName(r.Title, r.Link),
		Location:    extractResultLocation(r.Snippet, r.Title),
		URL:         r.Link,
		Salary:      extractSalary(r.Snippet),
		Description: r.Snippet,
		Source:      session.SourceForURL(r.Link),
	}
}

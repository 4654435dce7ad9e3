package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs/us/search/1"

// AdzunaProvider searches the Adzuna job aggregator. It is the second
// tier, tried when the primary provider errors or comes back empty for a
// query.
type AdzunaProvider struct {
	appID  string
	appKey string
	apiURL string
	client *http.Client
}

// NewAdzunaProvider returns a provider authenticated with the Adzuna app
// credentials.
func NewAdzunaProvider(appID, appKey string) *AdzunaProvider {
	return &AdzunaProvider{
		appID:  appID,
		appKey: appKey,
		apiURL: adzunaBaseURL,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *AdzunaProvider) Name() string {
	return "adzuna"
}

type adzunaJob struct {
	Title   string `json:"title"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	RedirectURL string  `json:"redirect_url"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Description string  `json:"description"`
}

type adzunaResponse struct {
	Results []adzunaJob `json:"results"`
	Count   int         `json:"count"`
}

// Search queries Adzuna with what=title and where=location. Adzuna ANDs
// every term, so the query never carries more than the title.
func (p *AdzunaProvider) Search(ctx context.Context, q Query) ([]session.Job, error) {
	params := url.Values{}
	params.Set("app_id", p.appID)
	params.Set("app_key", p.appKey)
	params.Set("results_per_page", strconv.Itoa(q.Limit))
	if q.Title != "" {
		params.Set("what", q.Title)
	} else {
		params.Set("what", "job")
	}
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	for _, jt := range q.JobTypes {
		switch jt {
		case session.JobTypeFullTime:
			params.Set("full_time", "1")
		case session.JobTypePartTime:
			params.Set("part_time", "1")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build adzuna request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adzuna request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("adzuna API returned status %d: %s", resp.StatusCode, errText)
	}

	var parsed adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse adzuna response: %w", err)
	}

	jobs := make([]session.Job, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		jobs = append(jobs, convertAdzunaJob(r))
	}
	return jobs, nil
}

func convertAdzunaJob(r adzunaJob) session.Job {
	location := r.Location.DisplayName
	if location == "" {
		location = "Remote"
	}
	return session.Job{
		ID:          session.JobID(r.RedirectURL),
		Title:       r.Title,
		Company:     r.Company.DisplayName,
		Location:    location,
		URL:         r.RedirectURL,
		Salary:      formatSalaryRange(r.SalaryMin, r.SalaryMax),
		Description: r.Description,
		Source:      session.SourceAdzuna,
	}
}

// formatSalaryRange renders Adzuna's numeric bounds as a display string
// like "$80k - $100k".
func formatSalaryRange(min, max float64) string {
	format := func(n float64) string {
		if n >= 1000 {
			return fmt.Sprintf("$%.0fk", n/1000)
		}
		return fmt.Sprintf("$%.0f", n)
	}

	switch {
	case min > 0 && max > 0:
		return format(min) + " - " + format(max)
	case min > 0:
		return "From " + format(min)
	case max > 0:
		return "Up to " + format(max)
	}
	return ""
}

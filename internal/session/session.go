package session

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// JobSource identifies which job board a posting came from. The set is
// closed; anything outside the known domains maps to SourceJobBoard.
type JobSource string

const (
	SourceAshby           JobSource = "Ashby"
	SourceGreenhouse      JobSource = "Greenhouse"
	SourceLever           JobSource = "Lever"
	SourceWorkable        JobSource = "Workable"
	SourcePaylocity       JobSource = "Paylocity"
	SourceSmartRecruiters JobSource = "SmartRecruiters"
	SourceAdzuna          JobSource = "Adzuna"
	SourceJobBoard        JobSource = "Job Board"
)

// Job type preference values as they appear in parsed resumes.
const (
	JobTypeFullTime = "full-time"
	JobTypePartTime = "part-time"
	JobTypeContract = "contract"
	JobTypeRemote   = "remote"
)

// Profile is the structured extraction from a resume. A profile with every
// field empty is valid; the search engine falls back to generic titles.
type Profile struct {
	JobTitles       []string `json:"jobTitles"`
	Skills          []string `json:"skills"`
	Industries      []string `json:"industries"`
	YearsExperience int      `json:"yearsExperience,omitempty"`
	Location        string   `json:"location,omitempty"`
	Education       string   `json:"education,omitempty"`
	JobTypes        []string `json:"jobTypes,omitempty"`
}

// IsEmpty reports whether no searchable signal was extracted at all.
func (p Profile) IsEmpty() bool {
	return len(p.JobTitles) == 0 &&
		len(p.Skills) == 0 &&
		len(p.Industries) == 0 &&
		p.YearsExperience == 0 &&
		p.Location == ""
}

// Job is one posting in a result set. Uniqueness is by ID, which is derived
// deterministically from the canonical URL.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	Salary      string    `json:"salary,omitempty"`
	Description string    `json:"description,omitempty"`
	Source      JobSource `json:"source"`
}

// JobID derives the stable job identifier from a posting URL: the first 12
// hex characters of its MD5. The same URL always yields the same ID across
// runs and providers.
func JobID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}

// Session is one resume-to-jobs workflow instance, keyed by an opaque ID.
// It is the only durable state; every field needed to resume processing
// after a restart lives here (or, compacted, in the payment gateway's
// metadata).
type Session struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	ResumeText     string    `json:"resumeText,omitempty"`
	Profile        *Profile  `json:"profile,omitempty"`
	Jobs           []Job     `json:"jobs,omitempty"`
	Status         Status    `json:"status"`
	EmailNotified  bool      `json:"emailNotified"`
	PaymentEventID string    `json:"paymentEventId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Patch is a partial session update. Nil fields are left untouched; a store
// applies a patch all-or-nothing against an existing record.
type Patch struct {
	Email          *string
	Profile        *Profile
	Jobs           *[]Job
	Status         *Status
	EmailNotified  *bool
	PaymentEventID *string
}

// Apply merges the patch into a copy of s and returns it.
func (p Patch) Apply(s Session) Session {
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Profile != nil {
		s.Profile = p.Profile
	}
	if p.Jobs != nil {
		s.Jobs = *p.Jobs
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.EmailNotified != nil {
		s.EmailNotified = *p.EmailNotified
	}
	if p.PaymentEventID != nil {
		s.PaymentEventID = *p.PaymentEventID
	}
	return s
}

// sourceByDomain maps job-board domains to their display tag.
var sourceByDomain = map[string]JobSource{
	"jobs.ashbyhq.com":         SourceAshby,
	"boards.greenhouse.io":     SourceGreenhouse,
	"jobs.lever.co":            SourceLever,
	"jobs.workable.com":        SourceWorkable,
	"recruiting.paylocity.com": SourcePaylocity,
	"jobs.smartrecruiters.com": SourceSmartRecruiters,
}

// SourceForURL returns the source tag for a posting URL, falling back to
// SourceJobBoard for unrecognized domains.
func SourceForURL(url string) JobSource {
	for domain, name := range sourceByDomain {
		if strings.Contains(url, domain) {
			return name
		}
	}
	return SourceJobBoard
}

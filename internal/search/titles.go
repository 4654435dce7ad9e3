package search

import (
	"strings"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const (
	maxPrimarySeeds   = 3
	maxInferredTitles = 10
	maxSeedTitleLen   = 60
	seniorYears       = 8
)

// genericTitles is the last-resort seed set when nothing at all can be
// derived from the profile.
var genericTitles = []string{"Software Engineer", "Developer", "Engineer"}

// nonSearchableTerms mark titles that don't correspond to postings on job
// boards; nobody lists a "Founder" opening.
var nonSearchableTerms = []string{"founder", "owner", "self-employed", "self employed", "freelancer", "entrepreneur"}

// TitleStrategy infers plausible job titles for a profile whose own titles
// are unusable. The keyword table is the default implementation; it is an
// interface so the mapping can be tuned or swapped without touching the
// orchestration.
type TitleStrategy interface {
	InferTitles(p session.Profile) []string
}

// filterSeedTitles keeps the first few profile titles that will search
// well, dropping excessively long ones and titles built from terms that
// never appear on postings.
func filterSeedTitles(titles []string) []string {
	var out []string
	for _, title := range titles {
		t := strings.TrimSpace(title)
		if t == "" || len(t) > maxSeedTitleLen {
			continue
		}
		if containsAny(strings.ToLower(t), nonSearchableTerms) {
			continue
		}
		out = append(out, t)
		if len(out) == maxPrimarySeeds {
			break
		}
	}
	return out
}

// broadenTitle produces the deliberately widened retry query for a seed
// that returned nothing: just its first one or two words.
func broadenTitle(title string) string {
	words := strings.Fields(title)
	if len(words) <= 2 {
		return title
	}
	return strings.Join(words[:2], " ")
}

// KeywordTitleStrategy maps skill and industry keywords to job titles via a
// hand-maintained table.
type KeywordTitleStrategy struct{}

// titleRule fires when any of its keywords appears among the profile's
// skills or industries.
type titleRule struct {
	keywords []string
	title    string
}

var titleRules = []titleRule{
	{[]string{"react", "node", "node.js", "full stack", "fullstack"}, "Full Stack Developer"},
	{[]string{"javascript", "typescript", "vue", "angular", "css", "frontend"}, "Frontend Developer"},
	{[]string{"go", "golang", "java", "ruby", "backend", "api"}, "Backend Developer"},
	{[]string{"python", "django", "flask"}, "Python Developer"},
	{[]string{"aws", "docker", "kubernetes", "terraform", "ci/cd"}, "DevOps Engineer"},
	{[]string{"sql", "tableau", "excel", "analytics", "data analysis"}, "Data Analyst"},
	{[]string{"machine learning", "tensorflow", "pytorch", "nlp"}, "Machine Learning Engineer"},
	{[]string{"ios", "android", "swift", "kotlin", "react native"}, "Mobile Developer"},
	{[]string{"figma", "sketch", "ux", "ui design", "user research"}, "UX Designer"},
	{[]string{"seo", "content marketing", "google ads", "marketing"}, "Marketing Manager"},
	{[]string{"salesforce", "crm", "sales", "account management"}, "Account Executive"},
	{[]string{"accounting", "quickbooks", "finance", "financial modeling"}, "Financial Analyst"},
	{[]string{"recruiting", "human resources", "hr"}, "HR Manager"},
	{[]string{"agile", "scrum", "jira", "project management"}, "Project Manager"},
	{[]string{"customer support", "zendesk", "customer success"}, "Customer Success Manager"},
}

// InferTitles builds up to ten plausible titles from skills, industries and
// experience. Eight or more years of experience promotes the first matches
// to Senior variants and adds a leadership title.
func (KeywordTitleStrategy) InferTitles(p session.Profile) []string {
	keywords := make(map[string]bool)
	for _, s := range p.Skills {
		keywords[strings.ToLower(strings.TrimSpace(s))] = true
	}
	for _, ind := range p.Industries {
		keywords[strings.ToLower(strings.TrimSpace(ind))] = true
	}

	var titles []string
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] && len(titles) < maxInferredTitles {
			seen[t] = true
			titles = append(titles, t)
		}
	}

	for _, rule := range titleRules {
		for _, kw := range rule.keywords {
			if keywords[kw] {
				add(rule.title)
				break
			}
		}
	}

	if p.YearsExperience >= seniorYears && len(titles) > 0 {
		senior := make([]string, 0, len(titles)+2)
		for i, t := range titles {
			if i < 2 && !strings.HasPrefix(t, "Senior ") {
				senior = append(senior, "Senior "+t)
			}
			senior = append(senior, t)
		}
		senior = append(senior, "Engineering Manager")
		if len(senior) > maxInferredTitles {
			senior = senior[:maxInferredTitles]
		}
		return senior
	}

	return titles
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

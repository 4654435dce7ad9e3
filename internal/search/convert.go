package search

import (
	"net/url"
	"regexp"
	"strings"
)

// Heuristics converting a raw web search result into a Job. Job-board page
// titles look like "Senior Engineer - Acme" or "Engineer at Acme | Ashby";
// the extraction below peels those suffixes apart.

var (
	titleSuffixRe = regexp.MustCompile(`\s*[-–|]\s*.+$`)
	titleAtRe     = regexp.MustCompile(`(?i)\s+at\s+.+$`)

	companyURLRe  = regexp.MustCompile(`(?:jobs\.|boards\.|recruiting\.)([^.]+)`)
	companyAtRe   = regexp.MustCompile(`(?i)\bat\s+(.+?)(?:\s*[-|]|$)`)
	companyDashRe = regexp.MustCompile(`[-–]\s*(.+?)(?:\s*[-|]|$)`)

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:in|at)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z]{2})`),
		regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z]{2})\s*[-|]`),
		regexp.MustCompile(`(?i)Location:\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,?\s*[A-Z]{2})`),
	}

	salaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$[\d,]+k?\s*-\s*\$[\d,]+k?`),
		regexp.MustCompile(`(?i)\$[\d,]+(?:,\d{3})*\s*-\s*\$[\d,]+(?:,\d{3})*`),
		regexp.MustCompile(`(?i)salary:?\s*\$[\d,]+k?`),
	}
)

// extractJobTitle removes company and location suffixes from a result
// title, falling back to the full title when cleaning strips everything.
func extractJobTitle(title string) string {
	cleaned := titleSuffixRe.ReplaceAllString(title, "")
	cleaned = titleAtRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return title
	}
	return cleaned
}

// extractCompanyName pulls the company from the job-board URL subdomain
// first, then from "at Company" or "- Company" title fragments. The
// capitalized domain name is the last resort.
func extractCompanyName(title, rawURL string) string {
	if m := companyURLRe.FindStringSubmatch(rawURL); len(m) > 1 && m[1] != "" {
		return capitalize(m[1])
	}

	if m := companyAtRe.FindStringSubmatch(title); len(m) > 1 && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	if m := companyDashRe.FindStringSubmatch(title); len(m) > 1 && m[1] != "" {
		return strings.TrimSpace(m[1])
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "Unknown Company"
	}
	host := u.Hostname()
	for _, prefix := range []string{"jobs.", "boards.", "recruiting."} {
		host = strings.TrimPrefix(host, prefix)
	}
	name := strings.SplitN(host, ".", 2)[0]
	if name == "" {
		return "Unknown Company"
	}
	return capitalize(name)
}

// extractResultLocation matches city/state patterns in the snippet, then
// the title. Job boards usually omit location from both, so the default is
// Remote.
func extractResultLocation(snippet, title string) string {
	for _, text := range []string{snippet, title} {
		for _, pattern := range locationPatterns {
			if m := pattern.FindStringSubmatch(text); len(m) > 1 {
				return strings.TrimSpace(m[1])
			}
		}
	}
	return "Remote"
}

// extractSalary returns the first currency range found in the snippet, or
// empty when none is present.
func extractSalary(snippet string) string {
	for _, pattern := range salaryPatterns {
		if m := pattern.FindString(snippet); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package notify

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

// emailTemplate renders the job list the recipient did not see on screen.
// Kept as a plain Go template string; one email shape does not warrant a
// template directory.
var emailTemplate = template.Must(template.New("jobs").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1a1a1a; max-width: 600px; margin: 0 auto;">
  <h2>Your additional job matches</h2>
  <p>We found {{len .Jobs}} more {{if eq (len .Jobs) 1}}position{{else}}positions{{end}} matching your resume, beyond the ones shown on your results page.</p>
  {{range $i, $job := .Jobs}}
  <div style="border: 1px solid #e0e0e0; border-radius: 6px; padding: 12px 16px; margin-bottom: 12px;">
    <strong>{{inc $i}}. {{$job.Title}}</strong><br>
    {{$job.Company}} &middot; {{$job.Location}}{{if $job.Salary}} &middot; {{$job.Salary}}{{end}}<br>
    <a href="{{$job.URL}}">View posting</a> <span style="color: #888;">({{$job.Source}})</span>
  </div>
  {{end}}
  <p style="color: #888; font-size: 12px;">You received this email because you requested a job search report.</p>
</body>
</html>`))

// RenderEmail produces the subject and HTML body for a job list.
func RenderEmail(jobs []session.Job) (subject, html string, err error) {
	subject = fmt.Sprintf("%d more job matches for you", len(jobs))
	if len(jobs) == 1 {
		subject = "1 more job match for you"
	}

	var sb strings.Builder
	if err := emailTemplate.Execute(&sb, struct{ Jobs []session.Job }{jobs}); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}
	return subject, sb.String(), nil
}

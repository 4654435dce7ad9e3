// Package parser turns an uploaded resume into a structured profile: PDF
// text extraction, plain-text validation, and LLM-backed field extraction.
package parser

import (
	"context"
	"errors"
	"strings"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const (
	// minResumeChars is the minimum extracted-text length for a resume
	// to be considered readable.
	minResumeChars = 50

	// MaxUploadBytes caps the accepted PDF size.
	MaxUploadBytes = 5 << 20
)

var (
	ErrUnreadableFormat    = errors.New("resume file could not be read as a PDF")
	ErrInsufficientContent = errors.New("resume contains too little text to parse")
	ErrNotAResume          = errors.New("document does not look like a resume")
	ErrProfileExtraction   = errors.New("failed to extract a profile from the resume")
	ErrUploadTooLarge      = errors.New("resume file exceeds the upload size limit")
)

// resumeMarkers are terms at least one of which appears in any real
// resume. Their absence means the PDF is some other document entirely.
var resumeMarkers = []string{
	"experience", "education", "skill", "work", "employment",
	"university", "college", "degree", "career", "objective", "summary",
}

// ResumeParser extracts a structured profile from raw resume text.
type ResumeParser interface {
	Parse(ctx context.Context, resumeText string) (session.Profile, error)
}

// ValidateResumeText checks that extracted text is long enough and
// actually resembles a resume.
func ValidateResumeText(text string) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minResumeChars {
		return ErrInsufficientContent
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range resumeMarkers {
		if strings.Contains(lower, marker) {
			return nil
		}
	}
	return ErrNotAResume
}

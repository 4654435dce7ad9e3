package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

const (
	// defaultParserModel is deliberately a small model; field extraction
	// from a resume does not need reasoning depth.
	defaultParserModel = "gpt-4o-mini"

	parserTimeout     = 60 * time.Second
	parserMaxAttempts = 3
	parserBaseBackoff = 1 * time.Second

	// maxPromptChars truncates oversized resumes before sending; the
	// signal for every profile field lives in the first pages.
	maxPromptChars = 12000
)

const extractionPrompt = `You are a resume parser. Extract the following fields from the resume text below and respond with a single JSON object, no other text:

{
  "jobTitles": ["up to 3 job titles this person would search for, most recent/senior first"],
  "skills": ["up to 10 concrete technical or professional skills"],
  "industries": ["up to 3 industries"],
  "yearsExperience": <total years of professional experience as an integer, 0 if unclear>,
  "location": "City, ST or empty string if not stated",
  "education": "highest degree and school, or empty string",
  "jobTypes": ["preferences such as full-time, part-time, contract, remote; empty array if not stated"]
}

Use empty arrays and empty strings for anything the resume does not state. Never invent facts.

Resume text:
`

// OpenAIParser extracts a Profile from resume text via a JSON-mode chat
// completion.
type OpenAIParser struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIParser builds a parser for the given API key. An empty model
// selects the default.
func NewOpenAIParser(apiKey, model string, logger *slog.Logger) (*OpenAIParser, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	if model == "" {
		model = defaultParserModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIParser{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: parserTimeout,
		logger:  logger,
	}, nil
}

// Parse validates the text, runs the extraction prompt and normalizes the
// result. Rate limits are retried with exponential backoff.
func (p *OpenAIParser) Parse(ctx context.Context, resumeText string) (session.Profile, error) {
	if err := ValidateResumeText(resumeText); err != nil {
		return session.Profile{}, err
	}

	if len(resumeText) > maxPromptChars {
		resumeText = resumeText[:maxPromptChars]
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < parserMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := parserBaseBackoff * time.Duration(1<<(attempt-1))
			p.logger.Warn("Retrying resume extraction",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return session.Profile{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(p.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(extractionPrompt + resumeText),
			},
			Temperature: openai.Float(0),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return session.Profile{}, fmt.Errorf("%w: %s", ErrProfileExtraction, err)
		}

		if len(completion.Choices) == 0 {
			lastErr = errors.New("completion returned no choices")
			continue
		}

		profile, err := decodeProfile(completion.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			continue
		}
		return profile, nil
	}

	return session.Profile{}, fmt.Errorf("%w: %s", ErrProfileExtraction, lastErr)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// decodeProfile parses and normalizes the model's JSON answer. Limits are
// enforced here rather than trusted to the prompt.
func decodeProfile(content string) (session.Profile, error) {
	var profile session.Profile
	if err := json.Unmarshal([]byte(content), &profile); err != nil {
		return session.Profile{}, fmt.Errorf("failed to decode extracted profile: %w", err)
	}
	return normalizeProfile(profile), nil
}

func normalizeProfile(p session.Profile) session.Profile {
	p.JobTitles = cleanList(p.JobTitles, 3)
	p.Skills = cleanList(p.Skills, 10)
	p.Industries = cleanList(p.Industries, 3)
	p.JobTypes = normalizeJobTypes(p.JobTypes)
	p.Location = strings.TrimSpace(p.Location)
	p.Education = strings.TrimSpace(p.Education)
	if p.YearsExperience < 0 {
		p.YearsExperience = 0
	}
	if p.YearsExperience > 60 {
		p.YearsExperience = 60
	}
	return p
}

func cleanList(in []string, limit int) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func normalizeJobTypes(in []string) []string {
	var out []string
	for _, s := range in {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "full-time", "full time", "fulltime":
			out = append(out, session.JobTypeFullTime)
		case "part-time", "part time", "parttime":
			out = append(out, session.JobTypePartTime)
		case "contract", "contractor":
			out = append(out, session.JobTypeContract)
		case "remote":
			out = append(out, session.JobTypeRemote)
		}
	}
	return out
}

package payment

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

// Checkout metadata values are capped at 500 characters by the provider,
// so the profile stored there is a lossy compaction: enough to rerun the
// job search, nothing more.
const maxMetadataValueLen = 500

const (
	compactMaxTitles = 3
	compactMaxSkills = 5
)

// compactProfile is the trimmed profile shape embedded in metadata. Short
// JSON keys buy room for the values.
type compactProfile struct {
	Titles   []string `json:"t,omitempty"`
	Skills   []string `json:"s,omitempty"`
	Location string   `json:"l,omitempty"`
	Years    int      `json:"y,omitempty"`
}

// CompactProfile serializes a profile into a metadata-sized JSON string.
// Fields are dropped in reverse order of search value until it fits.
func CompactProfile(p session.Profile) string {
	c := compactProfile{
		Titles:   truncateList(p.JobTitles, compactMaxTitles),
		Skills:   truncateList(p.Skills, compactMaxSkills),
		Location: p.Location,
		Years:    p.YearsExperience,
	}

	for {
		encoded, err := json.Marshal(c)
		if err == nil && len(encoded) <= maxMetadataValueLen {
			return string(encoded)
		}

		switch {
		case len(c.Skills) > 0:
			c.Skills = c.Skills[:len(c.Skills)-1]
		case len(c.Titles) > 1:
			c.Titles = c.Titles[:len(c.Titles)-1]
		case c.Location != "":
			c.Location = ""
		default:
			// A single pathological title; hard-truncate it.
			if len(c.Titles) == 1 && len(c.Titles[0]) > 100 {
				c.Titles[0] = truncateString(c.Titles[0], 100)
				continue
			}
			return "{}"
		}
	}
}

// ExpandProfile reverses CompactProfile. A nil return means the metadata
// held nothing usable.
func ExpandProfile(metadata string) *session.Profile {
	if metadata == "" {
		return nil
	}

	var c compactProfile
	if err := json.Unmarshal([]byte(metadata), &c); err != nil {
		return nil
	}

	p := session.Profile{
		JobTitles:       c.Titles,
		Skills:          c.Skills,
		Location:        c.Location,
		YearsExperience: c.Years,
	}
	if p.IsEmpty() {
		return nil
	}
	return &p
}

// truncateList copies so the shrink loop never writes into the
// caller's backing array.
func truncateList(in []string, limit int) []string {
	if len(in) > limit {
		in = in[:limit]
	}
	return append([]string(nil), in...)
}

// truncateString cuts to at most max bytes without splitting a rune.
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

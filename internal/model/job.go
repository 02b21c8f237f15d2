package model

import "strings"

// JobQuery is the validated input of a single pricing calculation. It is
// created once per request and never mutated.
type JobQuery struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Experience  *ExperienceRange `json:"experience,omitempty"`
}

// ExperienceRange is an inclusive range of years of experience.
type ExperienceRange struct {
	MinYears float64 `json:"min_years"`
	MaxYears float64 `json:"max_years"`
}

// Midpoint returns the center of the range. An open upper bound (MaxYears <=
// MinYears) collapses to MinYears.
func (r ExperienceRange) Midpoint() float64 {
	if r.MaxYears <= r.MinYears {
		return r.MinYears
	}
	return (r.MinYears + r.MaxYears) / 2
}

// Text returns the text embedded for taxonomy matching: title, then
// description when present.
func (q JobQuery) Text() string {
	title := strings.TrimSpace(q.Title)
	desc := strings.TrimSpace(q.Description)
	if desc == "" {
		return title
	}
	return title + "\n\n" + desc
}

// MatchMethod records how a canonical taxonomy entry was resolved.
type MatchMethod string

const (
	MatchMethodVector    MatchMethod = "vector"
	MatchMethodHybridLLM MatchMethod = "hybrid_llm"
	MatchMethodNone      MatchMethod = "none"
)

// CanonicalJobMatch is the outcome of resolving a JobQuery against the job
// taxonomy. Method none is the explicit "no match" variant.
type CanonicalJobMatch struct {
	Code       string      `json:"code,omitempty"`
	Title      string      `json:"title,omitempty"`
	Method     MatchMethod `json:"method"`
	Similarity float64     `json:"similarity"` // cosine similarity of the chosen entry
	Confidence float64     `json:"confidence"` // 0.0-1.0, used for match quality scoring
	Rationale  string      `json:"rationale,omitempty"`
	Degraded   bool        `json:"degraded,omitempty"` // embedding or arbiter was unavailable
}

// NoMatch returns the "no match" variant.
func NoMatch(degraded bool, rationale string) CanonicalJobMatch {
	return CanonicalJobMatch{
		Method:    MatchMethodNone,
		Rationale: rationale,
		Degraded:  degraded,
	}
}

// Matched reports whether a taxonomy code was resolved.
func (m CanonicalJobMatch) Matched() bool {
	return m.Method != MatchMethodNone && m.Method != "" && m.Code != ""
}

// TaxonomyCandidate is one nearest-neighbor hit from the taxonomy index.
type TaxonomyCandidate struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Similarity  float64 `json:"similarity"`
}

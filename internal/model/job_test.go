package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobQuery_Text(t *testing.T) {
	assert.Equal(t, "Software Engineer", JobQuery{Title: " Software Engineer "}.Text())
	assert.Equal(t, "Recruiter\n\nSources candidates",
		JobQuery{Title: "Recruiter", Description: "Sources candidates"}.Text())
}

func TestExperienceRange_Midpoint(t *testing.T) {
	assert.Equal(t, 4.0, ExperienceRange{MinYears: 3, MaxYears: 5}.Midpoint())
	assert.Equal(t, 10.0, ExperienceRange{MinYears: 10}.Midpoint())
}

func TestCanonicalJobMatch_Matched(t *testing.T) {
	assert.False(t, NoMatch(false, "").Matched())
	assert.False(t, CanonicalJobMatch{Method: MatchMethodVector}.Matched())
	assert.True(t, CanonicalJobMatch{Code: "15-1252", Method: MatchMethodVector}.Matched())

	nm := NoMatch(true, "embedding unavailable")
	assert.Equal(t, MatchMethodNone, nm.Method)
	assert.True(t, nm.Degraded)
}

func TestParseSourceKind(t *testing.T) {
	for _, k := range AllSourceKinds {
		got, err := ParseSourceKind(string(k))
		assert.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseSourceKind("glassdoor")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source kind")
}

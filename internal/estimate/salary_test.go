package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/model"
	"github.com/sells-group/comp-pricer/internal/source"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name string
		exp  *model.ExperienceRange
		want Level
	}{
		{"missing", nil, LevelMid},
		{"new grad", &model.ExperienceRange{MinYears: 0, MaxYears: 1}, LevelEntry},
		{"boundary mid", &model.ExperienceRange{MinYears: 2, MaxYears: 2}, LevelMid},
		{"mid", &model.ExperienceRange{MinYears: 3, MaxYears: 5}, LevelMid},
		{"senior", &model.ExperienceRange{MinYears: 5, MaxYears: 8}, LevelSenior},
		{"lead", &model.ExperienceRange{MinYears: 10, MaxYears: 15}, LevelLead},
		{"open upper bound", &model.ExperienceRange{MinYears: 9}, LevelLead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFor(tt.exp))
		})
	}
}

func TestEstimate_DefaultBands(t *testing.T) {
	e := NewSalaryEstimator(config.FallbackConfig{})
	est := e.Estimate(model.JobQuery{Title: "Software Engineer"})

	assert.Equal(t, LevelMid, est.Level)
	assert.Equal(t, Method, est.Method)
	assert.InDelta(t, 5000, est.Median, 1e-9)
	assert.InDelta(t, 1.0, est.LocationMultiplier, 1e-9)
	assert.InDelta(t, 3750, est.Ladder.P10, 1e-9)
	assert.InDelta(t, 5000, est.Ladder.P50, 1e-9)
	assert.InDelta(t, 6500, est.Ladder.P90, 1e-9)
	require.NoError(t, est.Ladder.Validate())
}

func TestEstimate_LocationMultiplier(t *testing.T) {
	e := NewSalaryEstimator(config.FallbackConfig{
		LocationMultipliers: map[string]float64{
			"york":     1.05,
			"New York": 1.30,
			"austin":   0, // ignored
		},
	})

	est := e.Estimate(model.JobQuery{Title: "Analyst", Location: "New York, NY"})
	assert.InDelta(t, 1.30, est.LocationMultiplier, 1e-9)
	assert.Equal(t, "new york", est.LocationMatched)
	assert.InDelta(t, 6500, est.Median, 1e-9)

	est = e.Estimate(model.JobQuery{Title: "Analyst", Location: "Austin, TX"})
	assert.InDelta(t, 1.0, est.LocationMultiplier, 1e-9)
	assert.Empty(t, est.LocationMatched)
}

func TestEstimate_ConfiguredBands(t *testing.T) {
	e := NewSalaryEstimator(config.FallbackConfig{
		Bands: map[string]float64{
			"Senior":    8000,
			"lead":      -1, // ignored, keeps default
			"principal": 12000,
		},
	})

	est := e.Estimate(model.JobQuery{Title: "Engineer", Experience: &model.ExperienceRange{MinYears: 6, MaxYears: 8}})
	assert.Equal(t, LevelSenior, est.Level)
	assert.InDelta(t, 8000, est.Median, 1e-9)

	est = e.Estimate(model.JobQuery{Title: "Engineer", Experience: &model.ExperienceRange{MinYears: 12}})
	assert.InDelta(t, 9000, est.Median, 1e-9)
}

func TestEstimate_AlwaysPositiveAndMonotonic(t *testing.T) {
	e := NewSalaryEstimator(config.FallbackConfig{
		LocationMultipliers: map[string]float64{"remote": 0.9, "zurich": 1.8},
	})
	locations := []string{"", "Remote", "Zurich", "nowhere"}
	ranges := []*model.ExperienceRange{nil, {MinYears: 0}, {MinYears: 3, MaxYears: 4}, {MinYears: 7}, {MinYears: 20, MaxYears: 30}}

	for _, loc := range locations {
		for _, exp := range ranges {
			est := e.Estimate(model.JobQuery{Title: "Role", Location: loc, Experience: exp})
			require.NoError(t, est.Ladder.Validate(), "location=%q", loc)
		}
	}
}

func TestEstimate_BuiltInBandsFollowCommonPeriod(t *testing.T) {
	tests := []struct {
		period source.Period
		median float64
	}{
		{source.PeriodMonth, 5000},
		{source.PeriodYear, 60000},
		{source.PeriodHour, 5000 * 12 / 2080.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			e := NewSalaryEstimator(config.FallbackConfig{},
				WithNormalizer(source.Normalizer{Currency: "USD", Period: tt.period}))
			est := e.Estimate(model.JobQuery{Title: "Software Engineer"})
			assert.InDelta(t, tt.median, est.Median, 1e-6)
			require.NoError(t, est.Ladder.Validate())
		})
	}
}

func TestEstimate_ConfiguredBandsAreNotRescaled(t *testing.T) {
	e := NewSalaryEstimator(config.FallbackConfig{Bands: map[string]float64{"mid": 95000}},
		WithNormalizer(source.Normalizer{Currency: "USD", Period: source.PeriodYear}))

	est := e.Estimate(model.JobQuery{Title: "Engineer", Experience: &model.ExperienceRange{MinYears: 3, MaxYears: 4}})
	assert.InDelta(t, 95000, est.Median, 1e-9)

	est = e.Estimate(model.JobQuery{Title: "Engineer", Experience: &model.ExperienceRange{MinYears: 10}})
	assert.InDelta(t, 9000*12, est.Median, 1e-9)
}

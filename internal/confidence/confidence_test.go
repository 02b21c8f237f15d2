package confidence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/comp-pricer/internal/aggregate"
	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/model"
)

func contrib(kind model.SourceKind, n int, decay float64) model.WeightedContribution {
	return model.WeightedContribution{
		SourceObservationSet: model.SourceObservationSet{Source: kind, SampleSize: n},
		NominalWeight:        aggregate.DefaultWeights().Nominal(kind),
		Decay:                decay,
	}
}

var strongMatch = model.CanonicalJobMatch{
	Code:       "15-1252",
	Method:     model.MatchMethodVector,
	Similarity: 0.91,
	Confidence: 0.9,
}

func newScorer() *Scorer {
	return NewScorer(aggregate.DefaultWeights(), DefaultConfig())
}

func TestScore_SingleSource(t *testing.T) {
	s := newScorer()
	score, level, b := s.Score([]model.WeightedContribution{
		contrib(model.SourceScrapedListings, 6, 0.5),
	}, strongMatch, false)

	assert.Equal(t, 7.5, b.Coverage)
	assert.Equal(t, 3.39, b.SampleSize)
	assert.Equal(t, 10.0, b.Recency)
	assert.Equal(t, 18.0, b.MatchQuality)
	assert.False(t, b.Capped)
	assert.Equal(t, 39, score)
	assert.Equal(t, model.ConfidenceLow, level)
}

func TestScore_AllSourcesFresh(t *testing.T) {
	s := newScorer()
	match := strongMatch
	match.Confidence = 1.0

	score, level, b := s.Score([]model.WeightedContribution{
		contrib(model.SourceTaxonomyBenchmark, 400, 1),
		contrib(model.SourceScrapedListings, 300, 1),
		contrib(model.SourceInternalRecords, 100, 1),
		contrib(model.SourceCandidateExpectations, 50, 1),
	}, match, false)

	assert.Equal(t, 25.5, b.Coverage)
	assert.Equal(t, 30.0, b.SampleSize)
	assert.Equal(t, 96, score)
	assert.Equal(t, model.ConfidenceHigh, level)
}

func TestScore_NoMatchScoresZeroMatchQuality(t *testing.T) {
	s := newScorer()
	_, _, b := s.Score([]model.WeightedContribution{
		contrib(model.SourceScrapedListings, 6, 1),
	}, model.NoMatch(false, "below floor"), false)
	assert.Equal(t, 0.0, b.MatchQuality)
}

func TestScore_DegradedMatchHalved(t *testing.T) {
	s := newScorer()
	m := strongMatch
	m.Degraded = true
	_, _, b := s.Score([]model.WeightedContribution{
		contrib(model.SourceScrapedListings, 6, 1),
	}, m, false)
	assert.Equal(t, 9.0, b.MatchQuality)
}

func TestScore_FallbackCeiling(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.ConfidenceConfig
		match model.CanonicalJobMatch
		want  int
	}{
		{"no match", DefaultConfig(), model.NoMatch(false, ""), 10},
		{"perfect match hits cap", DefaultConfig(), model.CanonicalJobMatch{Code: "x", Method: model.MatchMethodVector, Confidence: 1}, 30},
		{"lower cap", config.ConfidenceConfig{FallbackBase: 10, FallbackCap: 25}, model.CanonicalJobMatch{Code: "x", Method: model.MatchMethodVector, Confidence: 1}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(aggregate.DefaultWeights(), tt.cfg)
			score, level, b := s.Score(nil, tt.match, true)
			assert.Equal(t, tt.want, score)
			assert.LessOrEqual(t, score, s.FallbackCap())
			assert.Equal(t, model.ConfidenceLow, level)
			assert.True(t, b.Capped)
			assert.Zero(t, b.Coverage)
		})
	}
}

func TestLevel(t *testing.T) {
	s := newScorer()
	assert.Equal(t, model.ConfidenceLow, s.Level(0))
	assert.Equal(t, model.ConfidenceLow, s.Level(39))
	assert.Equal(t, model.ConfidenceMedium, s.Level(40))
	assert.Equal(t, model.ConfidenceMedium, s.Level(70))
	assert.Equal(t, model.ConfidenceHigh, s.Level(71))
	assert.Equal(t, model.ConfidenceHigh, s.Level(100))
}

func TestNewScorer_Defaults(t *testing.T) {
	s := NewScorer(aggregate.DefaultWeights(), config.ConfidenceConfig{})
	assert.Equal(t, 50.0, s.cfg.SampleSaturation)
	assert.Equal(t, 30, s.cfg.FallbackCap)
	assert.Equal(t, 40, s.cfg.MediumThreshold)
	assert.Equal(t, 70, s.cfg.HighThreshold)
	assert.Equal(t, 0.0, s.cfg.FallbackBase) // zero is a valid base
}

func TestScore_MonotonicInCoverage(t *testing.T) {
	s := newScorer()
	r := rand.New(rand.NewSource(7))
	decays := []float64{0, 0.1, 0.3, 0.5, 0.9, 1}

	for iter := 0; iter < 1000; iter++ {
		kinds := r.Perm(len(model.AllSourceKinds))
		a := contrib(model.AllSourceKinds[kinds[0]], 1+r.Intn(200), decays[r.Intn(len(decays))])
		b := contrib(model.AllSourceKinds[kinds[1]], 1+r.Intn(200), decays[r.Intn(len(decays))])
		match := model.CanonicalJobMatch{Code: "x", Method: model.MatchMethodVector, Confidence: r.Float64(), Degraded: r.Intn(2) == 0}

		alone, _, _ := s.Score([]model.WeightedContribution{a}, match, false)
		other, _, _ := s.Score([]model.WeightedContribution{b}, match, false)
		both, _, _ := s.Score([]model.WeightedContribution{a, b}, match, false)

		assert.GreaterOrEqual(t, both, alone, "iteration %d", iter)
		assert.GreaterOrEqual(t, both, other, "iteration %d", iter)
	}
}

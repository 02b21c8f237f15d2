// Package confidence scores how far a pricing result can be trusted.
package confidence

import (
	"math"

	"github.com/sells-group/comp-pricer/internal/aggregate"
	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/model"
)

// Sub-score ceilings. They sum to 100.
const (
	maxCoverage = 30.0
	maxSample   = 30.0
	maxRecency  = 20.0
	maxMatch    = 20.0
)

// DefaultConfig returns the built-in scorer settings.
func DefaultConfig() config.ConfidenceConfig {
	return config.ConfidenceConfig{
		SampleSaturation: 50,
		FallbackBase:     10,
		FallbackCap:      30,
		MediumThreshold:  40,
		HighThreshold:    70,
	}
}

// Scorer turns contributions and match quality into a 0-100 score. It is
// read-only after construction.
type Scorer struct {
	weights aggregate.Weights
	cfg     config.ConfidenceConfig
}

// NewScorer creates a Scorer. Zero or negative settings take their defaults.
func NewScorer(w aggregate.Weights, cfg config.ConfidenceConfig) *Scorer {
	d := DefaultConfig()
	if cfg.SampleSaturation <= 0 {
		cfg.SampleSaturation = d.SampleSaturation
	}
	if cfg.FallbackBase < 0 {
		cfg.FallbackBase = d.FallbackBase
	}
	if cfg.FallbackCap <= 0 {
		cfg.FallbackCap = d.FallbackCap
	}
	if cfg.MediumThreshold <= 0 {
		cfg.MediumThreshold = d.MediumThreshold
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = d.HighThreshold
	}
	return &Scorer{weights: w, cfg: cfg}
}

// FallbackCap is the highest score a heuristic-only result can receive.
func (s *Scorer) FallbackCap() int {
	return s.cfg.FallbackCap
}

// Score computes the score, its level and the sub-score breakdown. Fallback
// results score fallback_base plus match quality, capped at fallback_cap.
func (s *Scorer) Score(contribs []model.WeightedContribution, match model.CanonicalJobMatch, fallback bool) (int, model.ConfidenceLevel, model.ConfidenceBreakdown) {
	b := model.ConfidenceBreakdown{MatchQuality: round2(matchScore(match))}

	if fallback || len(contribs) == 0 {
		raw := s.cfg.FallbackBase + b.MatchQuality
		score := int(math.Round(clamp(raw, 0, 100)))
		if score > s.cfg.FallbackCap {
			score = s.cfg.FallbackCap
		}
		b.Capped = true
		return score, s.Level(score), b
	}

	kinds := make([]model.SourceKind, 0, len(contribs))
	var samples int
	var freshest float64
	for _, c := range contribs {
		kinds = append(kinds, c.Source)
		if c.SampleSize > 0 {
			samples += c.SampleSize
		}
		freshest = math.Max(freshest, c.Decay)
	}

	b.Coverage = round2(maxCoverage * clamp(s.weights.Share(kinds), 0, 1))
	b.SampleSize = round2(maxSample * (1 - math.Exp(-float64(samples)/s.cfg.SampleSaturation)))
	b.Recency = round2(maxRecency * clamp(freshest, 0, 1))

	total := b.Coverage + b.SampleSize + b.Recency + b.MatchQuality
	score := int(math.Round(clamp(total, 0, 100)))
	return score, s.Level(score), b
}

// Level maps a score to its qualitative band: below medium is low, above
// high is high.
func (s *Scorer) Level(score int) model.ConfidenceLevel {
	switch {
	case score < s.cfg.MediumThreshold:
		return model.ConfidenceLow
	case score > s.cfg.HighThreshold:
		return model.ConfidenceHigh
	default:
		return model.ConfidenceMedium
	}
}

// matchScore scales match confidence to 0-20. No match scores zero and a
// degraded match counts half.
func matchScore(m model.CanonicalJobMatch) float64 {
	if !m.Matched() {
		return 0
	}
	v := maxMatch * clamp(m.Confidence, 0, 1)
	if m.Degraded {
		v /= 2
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

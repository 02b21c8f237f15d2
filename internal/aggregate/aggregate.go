// Package aggregate combines per-source percentile ladders into one
// recency-weighted ladder, and derives the target, range and scenarios.
package aggregate

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/estimate"
	"github.com/sells-group/comp-pricer/internal/model"
)

// DefaultTargetPercentile is the percentile reported as the target salary.
const DefaultTargetPercentile = 50

// scenarioWindows are the named percentile windows sliced from a ladder.
var scenarioWindows = []struct {
	name   string
	lo, hi float64
}{
	{"conservative", 25, 50},
	{"market", 40, 60},
	{"competitive", 50, 75},
	{"premium", 75, 90},
}

// Aggregation is the numeric outcome of combining source sets. Fallback
// aggregations carry no contributions and the heuristic Estimate instead.
type Aggregation struct {
	Ladder           model.Ladder
	Target           float64
	TargetPercentile float64
	RangeLow         float64
	RangeHigh        float64
	Contributions    []model.WeightedContribution
	Scenarios        []model.Scenario
	Fallback         bool
	Estimate         *estimate.SalaryEstimate
	AllStale         bool // every weighted source decayed to zero
}

// Aggregator holds the immutable configuration of the aggregation step.
// It is safe for concurrent use.
type Aggregator struct {
	weights   Weights
	maxAges   map[model.SourceKind]int
	targetPct float64
	estimator *estimate.SalaryEstimator
	now       func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNow overrides the clock used for recency decay.
func WithNow(fn func() time.Time) Option {
	return func(a *Aggregator) { a.now = fn }
}

// WithTargetPercentile sets the percentile reported as the target. Values
// outside [10, 90] clamp to the ladder ends.
func WithTargetPercentile(p float64) Option {
	return func(a *Aggregator) {
		if p > 0 {
			a.targetPct = p
		}
	}
}

// New creates an Aggregator. maxAges holds each source's decay horizon in
// days; a source without one never decays. A nil estimator uses the built-in
// salary bands.
func New(w Weights, maxAges map[model.SourceKind]int, est *estimate.SalaryEstimator, opts ...Option) *Aggregator {
	if est == nil {
		est = estimate.NewSalaryEstimator(config.FallbackConfig{})
	}
	ages := make(map[model.SourceKind]int, len(maxAges))
	for k, v := range maxAges {
		ages[k] = v
	}
	a := &Aggregator{
		weights:   w,
		maxAges:   ages,
		targetPct: DefaultTargetPercentile,
		estimator: est,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate combines the non-empty source sets. Sets with an unknown kind,
// a duplicate kind or an invalid ladder are skipped. With nothing left the
// context-only heuristic is used and the aggregation is marked Fallback.
func (a *Aggregator) Aggregate(q model.JobQuery, match model.CanonicalJobMatch, sets []model.SourceObservationSet) Aggregation {
	present := a.usable(sets)
	if len(present) == 0 {
		return a.fallback(q)
	}

	now := a.now()
	contribs := make([]model.WeightedContribution, len(present))
	var effSum, nomSum float64
	for i, s := range present {
		nominal := a.weights.Nominal(s.Source)
		decay := Decay(s.AsOf, now, a.maxAges[s.Source])
		contribs[i] = model.WeightedContribution{
			SourceObservationSet: s,
			NominalWeight:        nominal,
			Decay:                decay,
		}
		effSum += nominal * decay
		nomSum += nominal
	}

	// Renormalize effective weights. When every source decayed to nothing the
	// ladder still comes from observed data, so fall back to nominal weights,
	// and to an equal split if those are zero too.
	allStale := effSum == 0 && nomSum > 0
	for i := range contribs {
		c := &contribs[i]
		switch {
		case effSum > 0:
			c.AppliedWeight = c.NominalWeight * c.Decay / effSum
		case nomSum > 0:
			c.AppliedWeight = c.NominalWeight / nomSum
		default:
			c.AppliedWeight = 1 / float64(len(contribs))
		}
	}
	if allStale {
		zap.L().Warn("aggregate: every source is stale, using nominal weights",
			zap.String("title", q.Title),
			zap.Int("sources", len(contribs)),
		)
	}

	ladder := weightedLadder(contribs)
	agg := a.shape(ladder)
	agg.Contributions = contribs
	agg.AllStale = allStale

	zap.L().Debug("aggregate: ladder computed",
		zap.String("title", q.Title),
		zap.String("match_code", match.Code),
		zap.Int("sources", len(contribs)),
		zap.Float64("target", agg.Target),
	)
	return agg
}

// usable filters sets down to one valid set per known kind, ordered by
// model.AllSourceKinds so contributions are deterministic.
func (a *Aggregator) usable(sets []model.SourceObservationSet) []model.SourceObservationSet {
	byKind := make(map[model.SourceKind]model.SourceObservationSet, len(sets))
	for _, s := range sets {
		if !s.Source.Valid() {
			zap.L().Warn("aggregate: skipping unknown source", zap.String("source", string(s.Source)))
			continue
		}
		if _, dup := byKind[s.Source]; dup {
			zap.L().Warn("aggregate: skipping duplicate source", zap.String("source", string(s.Source)))
			continue
		}
		if err := s.Ladder.Validate(); err != nil {
			zap.L().Warn("aggregate: skipping invalid ladder",
				zap.String("source", string(s.Source)),
				zap.Error(err),
			)
			continue
		}
		byKind[s.Source] = s
	}

	out := make([]model.SourceObservationSet, 0, len(byKind))
	for _, k := range model.AllSourceKinds {
		if s, ok := byKind[k]; ok {
			out = append(out, s)
		}
	}
	return out
}

// weightedLadder averages each rank independently. Applied weights form a
// convex combination, so monotonic inputs give a monotonic output.
func weightedLadder(contribs []model.WeightedContribution) model.Ladder {
	var out [5]float64
	for _, c := range contribs {
		v := c.Ladder.Values()
		for i := range out {
			out[i] += c.AppliedWeight * v[i]
		}
	}
	return model.LadderFromValues(out)
}

func (a *Aggregator) fallback(q model.JobQuery) Aggregation {
	est := a.estimator.Estimate(q)
	agg := a.shape(est.Ladder)
	agg.Fallback = true
	agg.Estimate = &est
	return agg
}

// shape derives target, range and scenarios from a ladder.
func (a *Aggregator) shape(l model.Ladder) Aggregation {
	scenarios := make([]model.Scenario, 0, len(scenarioWindows))
	for _, w := range scenarioWindows {
		scenarios = append(scenarios, model.Scenario{
			Name:   w.name,
			Low:    l.At(w.lo),
			High:   l.At(w.hi),
			Target: l.At((w.lo + w.hi) / 2),
		})
	}
	return Aggregation{
		Ladder:           l,
		Target:           l.At(a.targetPct),
		TargetPercentile: a.targetPct,
		RangeLow:         l.P25,
		RangeHigh:        l.P75,
		Scenarios:        scenarios,
	}
}

// Weights returns the nominal weight table.
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Package estimate provides the context-only salary heuristic used when no
// source returned observations for a query.
package estimate

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/model"
	"github.com/sells-group/comp-pricer/internal/source"
)

// Method identifies heuristic-derived results in the audit trail.
const Method = "context_heuristic"

// Level is a coarse seniority bucket derived from years of experience.
type Level string

const (
	LevelEntry  Level = "entry"
	LevelMid    Level = "mid"
	LevelSenior Level = "senior"
	LevelLead   Level = "lead"
)

// defaultBands are monthly USD medians per level. They are rescaled to the
// engine's common period; configured bands are taken as already in it.
var defaultBands = map[Level]float64{
	LevelEntry:  3500,
	LevelMid:    5000,
	LevelSenior: 7000,
	LevelLead:   9000,
}

// spreadRatios shape a ladder around the band median, aligned with
// model.LadderRanks.
var spreadRatios = [5]float64{0.75, 0.87, 1.0, 1.15, 1.3}

// SalaryEstimate is a heuristic ladder built from request context alone.
type SalaryEstimate struct {
	Ladder             model.Ladder `json:"ladder"`
	Level              Level        `json:"level"`
	Median             float64      `json:"median"`
	LocationMultiplier float64      `json:"location_multiplier"`
	LocationMatched    string       `json:"location_matched,omitempty"`
	Method             string       `json:"method"`
}

type locationFactor struct {
	fragment   string
	multiplier float64
}

// SalaryEstimator maps experience and location to a salary ladder using
// static band and multiplier tables. It is read-only after construction.
type SalaryEstimator struct {
	bands     map[Level]float64
	locations []locationFactor
}

// Option configures a SalaryEstimator.
type Option func(*options)

type options struct {
	norm source.Normalizer
}

// WithNormalizer sets the common unit the built-in bands are converted to.
// Without it the estimator works in USD per month.
func WithNormalizer(n source.Normalizer) Option {
	return func(o *options) { o.norm = n }
}

// NewSalaryEstimator builds an estimator from config. Unknown band names and
// non-positive values are ignored; missing bands use the built-in table.
func NewSalaryEstimator(cfg config.FallbackConfig, opts ...Option) *SalaryEstimator {
	o := options{norm: source.Normalizer{Currency: "USD", Period: source.PeriodMonth}}
	for _, opt := range opts {
		opt(&o)
	}
	// Only the period is converted; there is no FX table.
	unit := source.Normalizer{Currency: "USD", Period: o.norm.Period}
	if unit.Period == "" {
		unit.Period = source.PeriodMonth
	}
	factor, ok := unit.Factor("USD", string(source.PeriodMonth))
	if !ok {
		factor = 1
	}
	if c := o.norm.Currency; c != "" && c != "USD" {
		zap.L().Warn("estimate: built-in salary bands are USD amounts", zap.String("currency", c))
	}

	bands := make(map[Level]float64, len(defaultBands))
	for lvl, v := range defaultBands {
		bands[lvl] = v * factor
	}
	for name, v := range cfg.Bands {
		lvl := Level(strings.ToLower(strings.TrimSpace(name)))
		if _, known := defaultBands[lvl]; !known {
			zap.L().Warn("estimate: ignoring unknown salary band", zap.String("band", name))
			continue
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		bands[lvl] = v
	}

	var locs []locationFactor
	for frag, m := range cfg.LocationMultipliers {
		frag = strings.ToLower(strings.TrimSpace(frag))
		if frag == "" || m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			continue
		}
		locs = append(locs, locationFactor{fragment: frag, multiplier: m})
	}
	// Longest fragment wins so "new york" beats "york"; ties break
	// alphabetically to keep lookups deterministic.
	sort.Slice(locs, func(i, j int) bool {
		if len(locs[i].fragment) != len(locs[j].fragment) {
			return len(locs[i].fragment) > len(locs[j].fragment)
		}
		return locs[i].fragment < locs[j].fragment
	})

	return &SalaryEstimator{bands: bands, locations: locs}
}

// Estimate returns a strictly positive, monotonic ladder for q.
func (e *SalaryEstimator) Estimate(q model.JobQuery) SalaryEstimate {
	level := LevelFor(q.Experience)
	median := e.bands[level]

	multiplier, matched := e.locationMultiplier(q.Location)
	median *= multiplier

	var v [5]float64
	for i, r := range spreadRatios {
		v[i] = median * r
	}
	ladder := model.LadderFromValues(v)

	zap.L().Info("estimate: salary computed",
		zap.String("title", q.Title),
		zap.String("level", string(level)),
		zap.String("location", q.Location),
		zap.String("location_matched", matched),
		zap.Float64("multiplier", multiplier),
		zap.Float64("median", median),
	)

	return SalaryEstimate{
		Ladder:             ladder,
		Level:              level,
		Median:             median,
		LocationMultiplier: multiplier,
		LocationMatched:    matched,
		Method:             Method,
	}
}

func (e *SalaryEstimator) locationMultiplier(location string) (float64, string) {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return 1.0, ""
	}
	for _, f := range e.locations {
		if strings.Contains(loc, f.fragment) {
			return f.multiplier, f.fragment
		}
	}
	return 1.0, ""
}

// LevelFor buckets an experience range by its midpoint. A missing range is
// treated as mid-level.
func LevelFor(exp *model.ExperienceRange) Level {
	if exp == nil {
		return LevelMid
	}
	years := exp.Midpoint()
	switch {
	case years < 2:
		return LevelEntry
	case years < 5:
		return LevelMid
	case years < 9:
		return LevelSenior
	default:
		return LevelLead
	}
}

package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// LadderRanks are the percentile ranks carried by every Ladder, in order.
var LadderRanks = [5]float64{10, 25, 50, 75, 90}

// Ladder is a percentile-shaped salary distribution in the engine's common
// currency and period.
type Ladder struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Values returns the ladder as an array aligned with LadderRanks.
func (l Ladder) Values() [5]float64 {
	return [5]float64{l.P10, l.P25, l.P50, l.P75, l.P90}
}

// LadderFromValues builds a Ladder from values aligned with LadderRanks.
func LadderFromValues(v [5]float64) Ladder {
	return Ladder{P10: v[0], P25: v[1], P50: v[2], P75: v[3], P90: v[4]}
}

var (
	// ErrNonMonotonic means a ladder rank is below the rank before it.
	ErrNonMonotonic = eris.New("ladder is not monotonically non-decreasing")
	// ErrNonPositive means a ladder contains a zero, negative, or non-finite value.
	ErrNonPositive = eris.New("ladder contains a non-positive or non-finite value")
)

// Validate checks p10 <= p25 <= p50 <= p75 <= p90 and that every value is a
// finite positive number.
func (l Ladder) Validate() error {
	v := l.Values()
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
			return eris.Wrapf(ErrNonPositive, "p%.0f=%v", LadderRanks[i], x)
		}
		if i > 0 && x < v[i-1] {
			return eris.Wrapf(ErrNonMonotonic, "p%.0f=%v < p%.0f=%v", LadderRanks[i], x, LadderRanks[i-1], v[i-1])
		}
	}
	return nil
}

// At returns the value at an arbitrary percentile by linear interpolation
// between the ladder's ranks. Percentiles outside [10, 90] clamp to the ends.
func (l Ladder) At(percentile float64) float64 {
	v := l.Values()
	if percentile <= LadderRanks[0] {
		return v[0]
	}
	for i := 1; i < len(LadderRanks); i++ {
		if percentile <= LadderRanks[i] {
			lo, hi := LadderRanks[i-1], LadderRanks[i]
			frac := (percentile - lo) / (hi - lo)
			return v[i-1] + frac*(v[i]-v[i-1])
		}
	}
	return v[len(v)-1]
}

// Scale multiplies every rank by f.
func (l Ladder) Scale(f float64) Ladder {
	v := l.Values()
	for i := range v {
		v[i] *= f
	}
	return LadderFromValues(v)
}

package source

import (
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-pricer/internal/model"
)

// Percentile returns the p-th percentile (0-100) of sorted values using
// linear interpolation between closest ranks, the same method as numpy's
// default and Excel's PERCENTILE.INC. sorted must be ascending and non-empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	h := (float64(len(sorted)) - 1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Percentiles computes a ladder from raw values. Every adapter that builds a
// ladder from a sample goes through here so sources stay comparable.
func Percentiles(values []float64) (model.Ladder, error) {
	if len(values) == 0 {
		return model.Ladder{}, eris.New("source: percentiles of empty sample")
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var v [5]float64
	for i, rank := range model.LadderRanks {
		v[i] = Percentile(sorted, rank)
	}
	return model.LadderFromValues(v), nil
}

// medianTime returns the median of ts, or the zero time for an empty slice.
func medianTime(ts []time.Time) time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	sorted := make([]time.Time, len(ts))
	copy(sorted, ts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[(len(sorted)-1)/2]
}

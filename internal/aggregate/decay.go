package aggregate

import (
	"math"
	"time"
)

// Decay returns the linear recency factor for data last observed at asOf:
// 1.0 when fresh, falling to 0.0 at maxAgeDays and staying there.
// A maxAgeDays <= 0 disables decay. Data without a timestamp or dated in the
// future is treated as current.
func Decay(asOf, now time.Time, maxAgeDays int) float64 {
	if maxAgeDays <= 0 || asOf.IsZero() {
		return 1.0
	}
	ageDays := now.Sub(asOf).Hours() / 24
	if ageDays <= 0 {
		return 1.0
	}
	return math.Max(0, 1-ageDays/float64(maxAgeDays))
}

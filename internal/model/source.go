package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// SourceKind identifies one independent supplier of salary observations.
// The set is closed; adding a source means adding a constant here and an
// adapter in internal/source.
type SourceKind string

const (
	SourceTaxonomyBenchmark     SourceKind = "taxonomy_benchmark"
	SourceScrapedListings       SourceKind = "scraped_listings"
	SourceInternalRecords       SourceKind = "internal_records"
	SourceCandidateExpectations SourceKind = "candidate_expectations"
)

// AllSourceKinds lists every known source in a stable order.
var AllSourceKinds = []SourceKind{
	SourceTaxonomyBenchmark,
	SourceScrapedListings,
	SourceInternalRecords,
	SourceCandidateExpectations,
}

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	for _, known := range AllSourceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseSourceKind converts a persisted or configured identifier to a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if !k.Valid() {
		return "", eris.Errorf("model: unknown source kind %q", s)
	}
	return k, nil
}

// SourceObservationSet is one source's standardized percentile summary.
type SourceObservationSet struct {
	Source     SourceKind `json:"source"`
	Ladder     Ladder     `json:"ladder"`
	SampleSize int        `json:"sample_size"`
	AsOf       time.Time  `json:"as_of"`
	Quality    float64    `json:"quality"` // source-specific, 0.0-1.0
	Currency   string     `json:"currency"`
	Period     string     `json:"period"`
}

// WeightedContribution is a SourceObservationSet annotated with the weight
// actually applied in aggregation. It is the unit written to the audit trail.
type WeightedContribution struct {
	SourceObservationSet
	NominalWeight float64 `json:"nominal_weight"`
	AppliedWeight float64 `json:"applied_weight"` // renormalized, sums to 1.0 across a result
	Decay         float64 `json:"decay"`          // 1.0 = fresh, 0.0 = at or beyond max age
}

// AgeDays derives the display age of the observations relative to now.
func (c WeightedContribution) AgeDays(now time.Time) int {
	if c.AsOf.IsZero() {
		return 0
	}
	days := int(now.Sub(c.AsOf).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

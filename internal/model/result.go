package model

import "time"

// ConfidenceLevel is the qualitative band of a confidence score.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// ConfidenceBreakdown holds the four sub-scores behind a confidence score.
type ConfidenceBreakdown struct {
	Coverage     float64 `json:"coverage"`      // 0-30
	SampleSize   float64 `json:"sample_size"`   // 0-30
	Recency      float64 `json:"recency"`       // 0-20
	MatchQuality float64 `json:"match_quality"` // 0-20
	Capped       bool    `json:"capped,omitempty"`
}

// Scenario is a named salary window sliced from the aggregated ladder.
type Scenario struct {
	Name   string  `json:"name"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Target float64 `json:"target"`
}

// Quality records degradations that lowered the trustworthiness of a result.
type Quality struct {
	MatchDegraded bool     `json:"match_degraded,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// PricingResult is the durable output of one pricing calculation. A retried
// calculation produces a new PricingResult with a new ID; results are never
// updated in place.
type PricingResult struct {
	ID               string                 `json:"id"`
	RequestID        string                 `json:"request_id"`
	Query            JobQuery               `json:"query"`
	Match            CanonicalJobMatch      `json:"match"`
	Ladder           Ladder                 `json:"ladder"`
	Target           float64                `json:"target"`
	TargetPercentile float64                `json:"target_percentile"`
	RangeLow         float64                `json:"range_low"`
	RangeHigh        float64                `json:"range_high"`
	Currency         string                 `json:"currency"`
	Period           string                 `json:"period"`
	Confidence       int                    `json:"confidence"`
	Level            ConfidenceLevel        `json:"level"`
	Breakdown        ConfidenceBreakdown    `json:"breakdown"`
	Contributions    []WeightedContribution `json:"contributions"`
	Scenarios        []Scenario             `json:"scenarios"`
	Fallback         bool                   `json:"fallback"`
	Quality          Quality                `json:"quality"`
	Explanation      string                 `json:"explanation"`
	CreatedAt        time.Time              `json:"created_at"`
}

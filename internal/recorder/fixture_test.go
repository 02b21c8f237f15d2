package recorder

import (
	"time"

	"github.com/sells-group/comp-pricer/internal/model"
)

var created = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func sampleResult(id, requestID string) *model.PricingResult {
	asOf := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	return &model.PricingResult{
		ID:        id,
		RequestID: requestID,
		Query:     model.JobQuery{Title: "Software Engineer", Location: "Austin, TX"},
		Match: model.CanonicalJobMatch{
			Code:       "15-1252",
			Title:      "Software Developers",
			Method:     model.MatchMethodVector,
			Similarity: 0.91,
			Confidence: 0.91,
		},
		Ladder:           model.Ladder{P10: 4461.538, P25: 5384.6154, P50: 6384.6154, P75: 7384.6154, P90: 8384.61},
		Target:           6384.6154,
		TargetPercentile: 50,
		RangeLow:         5384.6154,
		RangeHigh:        7384.6154,
		Currency:         "USD",
		Period:           "month",
		Confidence:       62,
		Level:            model.ConfidenceMedium,
		Breakdown:        model.ConfidenceBreakdown{Coverage: 19.5, SampleSize: 12.3, Recency: 18, MatchQuality: 18.2},
		Contributions: []model.WeightedContribution{
			{
				SourceObservationSet: model.SourceObservationSet{
					Source:     model.SourceTaxonomyBenchmark,
					Ladder:     model.Ladder{P10: 4000, P25: 5000, P50: 6000, P75: 7000, P90: 8000},
					SampleSize: 200,
					AsOf:       asOf,
					Quality:    1,
					Currency:   "USD",
					Period:     "month",
				},
				NominalWeight: 0.40,
				AppliedWeight: 0.615384615,
				Decay:         1,
			},
			{
				SourceObservationSet: model.SourceObservationSet{
					Source:     model.SourceScrapedListings,
					Ladder:     model.Ladder{P10: 5000, P25: 6000, P50: 7000, P75: 8000, P90: 9000},
					SampleSize: 20,
					AsOf:       asOf,
					Quality:    0.8,
					Currency:   "USD",
					Period:     "month",
				},
				NominalWeight: 0.25,
				AppliedWeight: 0.384615385,
				Decay:         0.75,
			},
		},
		Scenarios: []model.Scenario{
			{Name: "conservative", Low: 5384.62, High: 6384.62, Target: 5884.62},
		},
		Quality:     model.Quality{Warnings: []string{"internal_records: timeout"}},
		Explanation: "Based on 2 sources.",
		CreatedAt:   created,
	}
}

package pricing

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/comp-pricer/internal/estimate"
	"github.com/sells-group/comp-pricer/internal/model"
)

var printer = message.NewPrinter(language.English)

// Explain writes the short plain-English summary stored with a result.
func Explain(r *model.PricingResult, est *estimate.SalaryEstimate) string {
	var b strings.Builder

	printer.Fprintf(&b, "Target %s %.0f per %s (p%.0f), range %.0f to %.0f",
		r.Currency, r.Target, r.Period, r.TargetPercentile, r.RangeLow, r.RangeHigh)

	switch {
	case r.Match.Matched():
		printer.Fprintf(&b, " for %q, matched to %s %s", r.Query.Title, r.Match.Code, r.Match.Title)
		if r.Match.Method == model.MatchMethodHybridLLM {
			b.WriteString(" after model review")
		}
		printer.Fprintf(&b, " (similarity %.2f).", r.Match.Similarity)
	default:
		printer.Fprintf(&b, " for %q, with no taxonomy match.", r.Query.Title)
	}

	if r.Fallback {
		b.WriteString(" No source returned data, so this is a heuristic estimate")
		if est != nil {
			printer.Fprintf(&b, " for a %s-level role", est.Level)
			if est.LocationMatched != "" {
				printer.Fprintf(&b, " adjusted %.2fx for %s", est.LocationMultiplier, est.LocationMatched)
			}
		}
		b.WriteString(".")
	} else {
		used := make([]model.WeightedContribution, len(r.Contributions))
		copy(used, r.Contributions)
		sort.SliceStable(used, func(i, j int) bool { return used[i].AppliedWeight > used[j].AppliedWeight })

		parts := make([]string, 0, len(used))
		for _, c := range used {
			parts = append(parts, printer.Sprintf("%s %.0f%% (%d records)", c.Source, c.AppliedWeight*100, c.SampleSize))
		}
		noun := "sources"
		if len(used) == 1 {
			noun = "source"
		}
		printer.Fprintf(&b, " Based on %d %s: %s.", len(used), noun, strings.Join(parts, ", "))
	}

	printer.Fprintf(&b, " Confidence %d/100 (%s).", r.Confidence, r.Level)
	return b.String()
}

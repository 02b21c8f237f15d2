package recorder

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-pricer/internal/model"
)

// resultColumns are the pricing_results columns in insert and select order.
var resultColumns = []string{
	"id", "request_id", "title", "match_code", "match_method",
	"p10", "p25", "p50", "p75", "p90",
	"target", "target_percentile", "range_low", "range_high",
	"currency", "period", "confidence", "level", "fallback",
	"job_query", "job_match", "breakdown", "scenarios", "quality_flags",
	"explanation", "created_at",
}

// contributionColumns are the pricing_contributions columns in insert and
// select order.
var contributionColumns = []string{
	"result_id", "ordinal", "source",
	"nominal_weight", "applied_weight", "decay",
	"p10", "p25", "p50", "p75", "p90",
	"sample_size", "as_of", "quality", "currency", "period",
	"created_at",
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ladderArgs(l model.Ladder) []any {
	v := l.Values()
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = round(x, 2)
	}
	return out
}

// resultArgs flattens r into values aligned with resultColumns.
func resultArgs(r *model.PricingResult) ([]any, error) {
	query, err := json.Marshal(r.Query)
	if err != nil {
		return nil, eris.Wrap(err, "recorder: marshal query")
	}
	match, err := json.Marshal(r.Match)
	if err != nil {
		return nil, eris.Wrap(err, "recorder: marshal match")
	}
	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "recorder: marshal breakdown")
	}
	scenarios, err := json.Marshal(r.Scenarios)
	if err != nil {
		return nil, eris.Wrap(err, "recorder: marshal scenarios")
	}
	quality, err := json.Marshal(r.Quality)
	if err != nil {
		return nil, eris.Wrap(err, "recorder: marshal quality")
	}

	args := []any{r.ID, r.RequestID, r.Query.Title, r.Match.Code, string(r.Match.Method)}
	args = append(args, ladderArgs(r.Ladder)...)
	args = append(args,
		round(r.Target, 2), round(r.TargetPercentile, 2), round(r.RangeLow, 2), round(r.RangeHigh, 2),
		r.Currency, r.Period, r.Confidence, string(r.Level), r.Fallback,
		query, match, breakdown, scenarios, quality,
		r.Explanation, r.CreatedAt,
	)
	return args, nil
}

// contributionRows flattens r's contributions into rows aligned with
// contributionColumns. Weights and decay keep 4 decimals, salaries 2.
func contributionRows(r *model.PricingResult) [][]any {
	rows := make([][]any, 0, len(r.Contributions))
	for i, c := range r.Contributions {
		var asOf *time.Time
		if !c.AsOf.IsZero() {
			t := c.AsOf.UTC()
			asOf = &t
		}
		row := []any{
			r.ID, i, string(c.Source),
			round(c.NominalWeight, 4), round(c.AppliedWeight, 4), round(c.Decay, 4),
		}
		row = append(row, ladderArgs(c.Ladder)...)
		row = append(row,
			c.SampleSize, asOf, round(c.Quality, 4), c.Currency, c.Period,
			r.CreatedAt,
		)
		rows = append(rows, row)
	}
	return rows
}

// resultRow is the scan target for one pricing_results row.
type resultRow struct {
	id, requestID, title, matchCode, matchMethod string
	ladder                                       [5]float64
	target, targetPct, rangeLow, rangeHigh       float64
	currency, period                             string
	confidence                                   int
	level                                        string
	fallback                                     bool
	query, match, breakdown, scenarios, quality  []byte
	explanation                                  string
	createdAt                                    time.Time
}

func (row *resultRow) dest() []any {
	return []any{
		&row.id, &row.requestID, &row.title, &row.matchCode, &row.matchMethod,
		&row.ladder[0], &row.ladder[1], &row.ladder[2], &row.ladder[3], &row.ladder[4],
		&row.target, &row.targetPct, &row.rangeLow, &row.rangeHigh,
		&row.currency, &row.period, &row.confidence, &row.level, &row.fallback,
		&row.query, &row.match, &row.breakdown, &row.scenarios, &row.quality,
		&row.explanation, &row.createdAt,
	}
}

func (row *resultRow) result() (model.PricingResult, error) {
	r := model.PricingResult{
		ID:               row.id,
		RequestID:        row.requestID,
		Ladder:           model.LadderFromValues(row.ladder),
		Target:           row.target,
		TargetPercentile: row.targetPct,
		RangeLow:         row.rangeLow,
		RangeHigh:        row.rangeHigh,
		Currency:         row.currency,
		Period:           row.period,
		Confidence:       row.confidence,
		Level:            model.ConfidenceLevel(row.level),
		Fallback:         row.fallback,
		Explanation:      row.explanation,
		CreatedAt:        row.createdAt.UTC(),
	}
	for _, f := range []struct {
		name string
		data []byte
		into any
	}{
		{"query", row.query, &r.Query},
		{"match", row.match, &r.Match},
		{"breakdown", row.breakdown, &r.Breakdown},
		{"scenarios", row.scenarios, &r.Scenarios},
		{"quality", row.quality, &r.Quality},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.into); err != nil {
			return model.PricingResult{}, eris.Wrapf(err, "recorder: unmarshal %s of %s", f.name, row.id)
		}
	}
	return r, nil
}

// contributionRow is the scan target for one pricing_contributions row.
type contributionRow struct {
	resultID         string
	position         int
	source           string
	nominal, applied float64
	decay            float64
	ladder           [5]float64
	sampleSize       int
	asOf             *time.Time
	quality          float64
	currency, period string
	createdAt        time.Time
}

func (row *contributionRow) dest() []any {
	return []any{
		&row.resultID, &row.position, &row.source,
		&row.nominal, &row.applied, &row.decay,
		&row.ladder[0], &row.ladder[1], &row.ladder[2], &row.ladder[3], &row.ladder[4],
		&row.sampleSize, &row.asOf, &row.quality, &row.currency, &row.period,
		&row.createdAt,
	}
}

func (row *contributionRow) contribution() (model.WeightedContribution, error) {
	kind, err := model.ParseSourceKind(row.source)
	if err != nil {
		return model.WeightedContribution{}, eris.Wrapf(err, "recorder: contribution %d of %s", row.position, row.resultID)
	}
	c := model.WeightedContribution{
		SourceObservationSet: model.SourceObservationSet{
			Source:     kind,
			Ladder:     model.LadderFromValues(row.ladder),
			SampleSize: row.sampleSize,
			Quality:    row.quality,
			Currency:   row.currency,
			Period:     row.period,
		},
		NominalWeight: row.nominal,
		AppliedWeight: row.applied,
		Decay:         row.decay,
	}
	if row.asOf != nil {
		c.AsOf = row.asOf.UTC()
	}
	return c, nil
}

// placeholders renders n bind parameters: $1, $2 ... for Postgres, or ?
// for SQLite.
func placeholders(n int, dollar bool) string {
	ps := make([]string, n)
	for i := range ps {
		if dollar {
			ps[i] = "$" + strconv.Itoa(i+1)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

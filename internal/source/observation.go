package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/db"
	"github.com/sells-group/comp-pricer/internal/model"
)

// TableSpec describes a table of raw salary observations. Column names are
// fixed by code, never by input.
type TableSpec struct {
	Kind        model.SourceKind
	Table       string
	TitleCol    string
	LocationCol string
	LowCol      string
	HighCol     string
	CurrencyCol string
	PeriodCol   string
	DateCol     string
}

// Tables for the observation-backed sources.
var (
	ScrapedListingsTable = TableSpec{
		Kind: model.SourceScrapedListings, Table: "scraped_listings",
		TitleCol: "title", LocationCol: "location",
		LowCol: "salary_min", HighCol: "salary_max",
		CurrencyCol: "currency", PeriodCol: "pay_period", DateCol: "posted_at",
	}
	InternalRecordsTable = TableSpec{
		Kind: model.SourceInternalRecords, Table: "employee_compensation",
		TitleCol: "job_title", LocationCol: "work_location",
		LowCol: "base_salary", HighCol: "base_salary",
		CurrencyCol: "currency", PeriodCol: "pay_period", DateCol: "effective_date",
	}
	CandidateExpectationsTable = TableSpec{
		Kind: model.SourceCandidateExpectations, Table: "candidate_expectations",
		TitleCol: "desired_title", LocationCol: "location",
		LowCol: "expected_min", HighCol: "expected_max",
		CurrencyCol: "currency", PeriodCol: "pay_period", DateCol: "submitted_at",
	}
)

// tier is one step of query widening.
type tier struct {
	name    string
	quality float64
	fuzzy   bool
	located bool
}

var tiers = []tier{
	{name: "exact", quality: 1.0, located: true},
	{name: "fuzzy", quality: 0.8, fuzzy: true, located: true},
	{name: "fuzzy-any-location", quality: 0.6, fuzzy: true},
}

// ObservationAdapter computes a ladder directly from raw observations. It
// widens its query tier by tier until it has at least MinSample usable
// values, and returns nothing if even the widest tier falls short.
type ObservationAdapter struct {
	pool     db.Pool
	table    TableSpec
	settings Settings
	norm     Normalizer
	now      func() time.Time
}

// Option configures an ObservationAdapter.
type Option func(*ObservationAdapter)

// WithNow overrides the clock used for the max-age cutoff.
func WithNow(fn func() time.Time) Option {
	return func(a *ObservationAdapter) { a.now = fn }
}

// NewObservationAdapter creates an adapter over table.
func NewObservationAdapter(pool db.Pool, table TableSpec, s Settings, norm Normalizer, opts ...Option) *ObservationAdapter {
	a := &ObservationAdapter{pool: pool, table: table, settings: s, norm: norm, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Kind implements Adapter.
func (a *ObservationAdapter) Kind() model.SourceKind { return a.table.Kind }

// Lookup implements Adapter. The match is not used.
func (a *ObservationAdapter) Lookup(ctx context.Context, q model.JobQuery, _ *model.CanonicalJobMatch) (*model.SourceObservationSet, error) {
	title := NormalizeTitle(q.Title)
	if title == "" {
		return nil, nil
	}
	loc := LocationPattern(q.Location)
	cutoff := a.now().AddDate(0, 0, -a.settings.MaxAgeDays)

	for _, t := range tiers {
		if t.located && loc == "" && t.fuzzy {
			// Without a location, the fuzzy-any-location tier covers this.
			continue
		}
		values, dates, err := a.queryTier(ctx, t, title, loc, cutoff)
		if err != nil {
			return nil, err
		}
		if len(values) < a.settings.MinSample {
			continue
		}

		ladder, err := Percentiles(values)
		if err != nil {
			return nil, err
		}
		set := &model.SourceObservationSet{
			Source:     a.table.Kind,
			Ladder:     ladder,
			SampleSize: len(values),
			AsOf:       medianTime(dates),
			Quality:    t.quality,
			Currency:   a.norm.Currency,
			Period:     string(a.norm.Period),
		}
		if err := Finalize(set, a.settings.MinSample); err != nil {
			zap.L().Warn("source: discarding malformed ladder",
				zap.String("source", string(a.table.Kind)),
				zap.String("tier", t.name),
				zap.Error(err),
			)
			return nil, nil
		}
		zap.L().Debug("source: observations found",
			zap.String("source", string(a.table.Kind)),
			zap.String("tier", t.name),
			zap.Int("sample", len(values)),
		)
		return set, nil
	}
	return nil, nil
}

func (a *ObservationAdapter) tierSQL(t tier) string {
	s := a.table
	sql := fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s WHERE %s >= $1",
		s.LowCol, s.HighCol, s.CurrencyCol, s.PeriodCol, s.DateCol, s.Table, s.DateCol)
	if t.fuzzy {
		sql += fmt.Sprintf(" AND similarity(lower(%s), $2) >= $3", s.TitleCol)
	} else {
		sql += fmt.Sprintf(" AND lower(%s) = $2", s.TitleCol)
	}
	next := 3
	if t.fuzzy {
		next = 4
	}
	if t.located {
		sql += fmt.Sprintf(" AND ($%d = '' OR %s ILIKE $%d)", next, s.LocationCol, next)
		next++
	}
	sql += fmt.Sprintf(" ORDER BY %s DESC LIMIT $%d", s.DateCol, next)
	return sql
}

func (a *ObservationAdapter) queryTier(ctx context.Context, t tier, title, loc string, cutoff time.Time) ([]float64, []time.Time, error) {
	args := []any{cutoff, title}
	if t.fuzzy {
		args = append(args, a.settings.SimilarityThreshold)
	}
	if t.located {
		args = append(args, loc)
	}
	args = append(args, a.settings.MaxRows)

	rows, err := a.pool.Query(ctx, a.tierSQL(t), args...)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "source: %s %s query", a.table.Kind, t.name)
	}
	defer rows.Close()

	return a.scan(rows)
}

func (a *ObservationAdapter) scan(rows pgx.Rows) ([]float64, []time.Time, error) {
	var (
		values []float64
		dates  []time.Time
	)
	for rows.Next() {
		var (
			low, high        *float64
			currency, period *string
			observed         time.Time
		)
		if err := rows.Scan(&low, &high, &currency, &period, &observed); err != nil {
			return nil, nil, eris.Wrapf(err, "source: %s scan row", a.table.Kind)
		}
		amount, ok := midpoint(low, high)
		if !ok {
			continue
		}
		factor, ok := a.norm.Factor(deref(currency), deref(period))
		if !ok {
			continue
		}
		values = append(values, amount*factor)
		dates = append(dates, observed)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrapf(err, "source: %s rows iteration", a.table.Kind)
	}
	return values, dates, nil
}

// midpoint returns the center of a salary range, or whichever bound is
// present. Non-positive bounds are ignored.
func midpoint(low, high *float64) (float64, bool) {
	l := low != nil && *low > 0
	h := high != nil && *high > 0
	switch {
	case l && h:
		if *high < *low {
			return 0, false
		}
		return (*low + *high) / 2, true
	case l:
		return *low, true
	case h:
		return *high, true
	}
	return 0, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package source

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/db"
	"github.com/sells-group/comp-pricer/internal/model"
)

// BenchmarkAdapter reads precomputed survey ladders keyed by taxonomy code
// and region. It needs a resolved match.
type BenchmarkAdapter struct {
	pool          db.Pool
	settings      Settings
	norm          Normalizer
	defaultRegion string
}

// NewBenchmarkAdapter creates the taxonomy-benchmark adapter.
func NewBenchmarkAdapter(pool db.Pool, s Settings, norm Normalizer, defaultRegion string) *BenchmarkAdapter {
	return &BenchmarkAdapter{pool: pool, settings: s, norm: norm, defaultRegion: defaultRegion}
}

// Kind implements Adapter.
func (a *BenchmarkAdapter) Kind() model.SourceKind { return model.SourceTaxonomyBenchmark }

const benchmarkSQL = `
SELECT p10, p25, p50, p75, p90, sample_size, currency, period, survey_date, quality
FROM taxonomy_benchmarks
WHERE code = $1 AND region = $2
ORDER BY survey_date DESC
LIMIT 1`

// Lookup implements Adapter. The query's own region is tried first, then the
// default region. A region whose row is incomplete or malformed is skipped.
func (a *BenchmarkAdapter) Lookup(ctx context.Context, q model.JobQuery, match *model.CanonicalJobMatch) (*model.SourceObservationSet, error) {
	if match == nil || !match.Matched() {
		return nil, nil
	}

	regions := []string{Region(q.Location, a.defaultRegion)}
	if regions[0] != a.defaultRegion {
		regions = append(regions, a.defaultRegion)
	}

	for _, region := range regions {
		set, err := a.lookupRegion(ctx, match.Code, region)
		if err != nil {
			return nil, err
		}
		if set == nil {
			continue
		}
		if err := Finalize(set, a.settings.MinSample); err != nil {
			zap.L().Warn("benchmark: discarding malformed survey row",
				zap.String("code", match.Code),
				zap.String("region", region),
				zap.Error(err),
			)
			continue
		}
		return set, nil
	}
	return nil, nil
}

func (a *BenchmarkAdapter) lookupRegion(ctx context.Context, code, region string) (*model.SourceObservationSet, error) {
	var (
		cols       [5]*float64
		sample     int
		currency   string
		period     string
		surveyDate time.Time
		quality    *float64
	)
	err := a.pool.QueryRow(ctx, benchmarkSQL, code, region).Scan(
		&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &sample, &currency, &period, &surveyDate, &quality,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: query %s/%s", code, region)
	}

	var v [5]float64
	for i, c := range cols {
		if c == nil {
			zap.L().Warn("benchmark: discarding incomplete survey row",
				zap.String("code", code),
				zap.String("region", region),
				zap.Float64("percentile", model.LadderRanks[i]),
			)
			return nil, nil
		}
		v[i] = *c
	}

	factor, ok := a.norm.Factor(currency, period)
	if !ok {
		zap.L().Warn("benchmark: survey in unsupported unit",
			zap.String("code", code),
			zap.String("currency", currency),
			zap.String("period", period),
		)
		return nil, nil
	}

	q := 1.0
	if quality != nil {
		q = *quality
	}
	return &model.SourceObservationSet{
		Source:     model.SourceTaxonomyBenchmark,
		Ladder:     model.LadderFromValues(v).Scale(factor),
		SampleSize: sample,
		AsOf:       surveyDate,
		Quality:    q,
		Currency:   a.norm.Currency,
		Period:     string(a.norm.Period),
	}, nil
}

// Package pricing runs one end-to-end pricing calculation: match the job,
// fan out to the sources, aggregate, score, and record the result.
package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/comp-pricer/internal/aggregate"
	"github.com/sells-group/comp-pricer/internal/confidence"
	"github.com/sells-group/comp-pricer/internal/model"
	"github.com/sells-group/comp-pricer/internal/recorder"
	"github.com/sells-group/comp-pricer/internal/source"
)

// defaultAdapterTimeout applies to registered adapters without a timeout.
const defaultAdapterTimeout = 5 * time.Second

// ErrInvalidQuery marks a query that cannot be priced at all.
var ErrInvalidQuery = eris.New("pricing: invalid query")

// Matcher resolves a query to a taxonomy entry. It never fails.
type Matcher interface {
	Match(ctx context.Context, q model.JobQuery) model.CanonicalJobMatch
}

// Engine prices job queries. It holds only read-only collaborators, so one
// Engine serves any number of concurrent calculations.
type Engine struct {
	matcher    Matcher
	registry   *source.Registry
	aggregator *aggregate.Aggregator
	scorer     *confidence.Scorer
	recorder   recorder.Recorder
	currency   string
	period     string
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the clock used for result timestamps.
func WithNow(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithIDGenerator overrides result id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithUnit sets the currency and period every result is expressed in.
func WithUnit(currency, period string) Option {
	return func(e *Engine) {
		if currency != "" {
			e.currency = strings.ToUpper(currency)
		}
		if period != "" {
			e.period = strings.ToLower(period)
		}
	}
}

// New creates an Engine. A nil recorder prices without persisting.
func New(m Matcher, reg *source.Registry, agg *aggregate.Aggregator, sc *confidence.Scorer, rec recorder.Recorder, opts ...Option) *Engine {
	e := &Engine{
		matcher:    m,
		registry:   reg,
		aggregator: agg,
		scorer:     sc,
		recorder:   rec,
		currency:   "USD",
		period:     "month",
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = source.NewRegistry()
	}
	return e
}

// Price runs one calculation for requestID. Source failures degrade the
// result; only a storage failure (see recorder.IsStorageFailure), an invalid
// query or cancellation of ctx return an error. A cancelled calculation is
// never persisted.
func (e *Engine) Price(ctx context.Context, requestID string, q model.JobQuery) (*model.PricingResult, error) {
	if err := ValidateQuery(requestID, q); err != nil {
		return nil, err
	}
	q.Title = strings.TrimSpace(q.Title)

	log := zap.L().With(zap.String("request_id", requestID), zap.String("title", q.Title))
	start := time.Now()

	match := e.matcher.Match(ctx, q)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pricing: cancelled during match")
	}

	sets, warnings := e.collect(ctx, q, match)
	if err := ctx.Err(); err != nil {
		log.Warn("pricing: cancelled, discarding partial result", zap.Int("sources_returned", len(sets)))
		return nil, eris.Wrap(err, "pricing: cancelled during source lookup")
	}

	agg := e.aggregator.Aggregate(q, match, sets)
	score, level, breakdown := e.scorer.Score(agg.Contributions, match, agg.Fallback)

	if agg.AllStale {
		warnings = append(warnings, "every source is past its max age")
	}
	if match.Degraded {
		warnings = append(warnings, "job match degraded: "+match.Rationale)
	}

	result := &model.PricingResult{
		ID:               e.newID(),
		RequestID:        requestID,
		Query:            q,
		Match:            match,
		Ladder:           agg.Ladder,
		Target:           agg.Target,
		TargetPercentile: agg.TargetPercentile,
		RangeLow:         agg.RangeLow,
		RangeHigh:        agg.RangeHigh,
		Currency:         e.currency,
		Period:           e.period,
		Confidence:       score,
		Level:            level,
		Breakdown:        breakdown,
		Contributions:    agg.Contributions,
		Scenarios:        agg.Scenarios,
		Fallback:         agg.Fallback,
		Quality:          model.Quality{MatchDegraded: match.Degraded, Warnings: warnings},
		CreatedAt:        e.now().UTC(),
	}
	if result.Contributions == nil {
		result.Contributions = []model.WeightedContribution{}
	}
	result.Explanation = Explain(result, agg.Estimate)

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pricing: cancelled before recording")
	}
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, result); err != nil {
			log.Error("pricing: record result failed", zap.String("result_id", result.ID), zap.Error(err))
			return nil, err
		}
	}

	log.Info("pricing: result computed",
		zap.String("result_id", result.ID),
		zap.String("match_code", match.Code),
		zap.String("match_method", string(match.Method)),
		zap.Int("sources", len(result.Contributions)),
		zap.Bool("fallback", result.Fallback),
		zap.Float64("target", result.Target),
		zap.Int("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// ValidateQuery rejects queries that cannot be priced.
func ValidateQuery(requestID string, q model.JobQuery) error {
	if strings.TrimSpace(requestID) == "" {
		return eris.Wrap(ErrInvalidQuery, "request id is required")
	}
	if strings.TrimSpace(q.Title) == "" {
		return eris.Wrap(ErrInvalidQuery, "title is required")
	}
	if x := q.Experience; x != nil && (x.MinYears < 0 || x.MaxYears < 0) {
		return eris.Wrap(ErrInvalidQuery, "experience years must not be negative")
	}
	return nil
}

// collect queries every registered adapter concurrently. Each adapter gets
// its own timeout; failures, timeouts, panics and malformed output are
// logged, reported as warnings and otherwise treated as "returned nothing".
func (e *Engine) collect(ctx context.Context, q model.JobQuery, match model.CanonicalJobMatch) ([]model.SourceObservationSet, []string) {
	entries := e.registry.Entries()
	results := make([]*model.SourceObservationSet, len(entries))
	problems := make([]string, len(entries))

	var g errgroup.Group
	for i, reg := range entries {
		g.Go(func() error {
			kind := reg.Adapter.Kind()
			set, err := e.lookup(ctx, reg, q, match)
			if err == nil {
				err = e.check(kind, set)
			}
			if err != nil {
				if ctx.Err() == nil {
					zap.L().Warn("pricing: source dropped",
						zap.String("source", string(kind)),
						zap.String("title", q.Title),
						zap.Error(err),
					)
					problems[i] = string(kind) + ": " + describe(err)
				}
				return nil // one source never fails the calculation
			}
			results[i] = set
			return nil
		})
	}
	_ = g.Wait()

	var sets []model.SourceObservationSet
	var warnings []string
	for i := range entries {
		if results[i] != nil {
			sets = append(sets, *results[i])
		}
		if problems[i] != "" {
			warnings = append(warnings, problems[i])
		}
	}
	return sets, warnings
}

// lookup runs one adapter under its timeout. An adapter that ignores its
// context is abandoned when the timeout fires.
func (e *Engine) lookup(ctx context.Context, reg source.Registered, q model.JobQuery, match model.CanonicalJobMatch) (*model.SourceObservationSet, error) {
	timeout := reg.Timeout
	if timeout <= 0 {
		timeout = defaultAdapterTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		set *model.SourceObservationSet
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: eris.Errorf("pricing: adapter panic: %v", r)}
			}
		}()
		m := match
		set, err := reg.Adapter.Lookup(cctx, q, &m)
		done <- outcome{set: set, err: err}
	}()

	select {
	case o := <-done:
		return o.set, o.err
	case <-cctx.Done():
		return nil, eris.Wrapf(cctx.Err(), "pricing: %s lookup", reg.Adapter.Kind())
	}
}

// check validates adapter output before it reaches the aggregator.
func (e *Engine) check(kind model.SourceKind, set *model.SourceObservationSet) error {
	if set == nil {
		return nil
	}
	if set.Source == "" {
		set.Source = kind
	}
	if set.Source != kind {
		return eris.Errorf("pricing: adapter %s returned a %s set", kind, set.Source)
	}
	if err := source.Finalize(set, 1); err != nil {
		return err
	}
	if set.Currency != "" && !strings.EqualFold(set.Currency, e.currency) {
		return eris.Errorf("pricing: %s returned currency %s, want %s", kind, set.Currency, e.currency)
	}
	if set.Period != "" && !strings.EqualFold(set.Period, e.period) {
		return eris.Errorf("pricing: %s returned period %s, want %s", kind, set.Period, e.period)
	}
	return nil
}

func describe(err error) string {
	is := func(target error) bool { return errors.Is(err, target) || eris.Is(err, target) }
	switch {
	case is(context.DeadlineExceeded):
		return "timed out"
	case is(model.ErrNonMonotonic), is(model.ErrNonPositive):
		return "malformed ladder"
	case is(source.ErrInsufficientSample):
		return "insufficient sample"
	default:
		return "lookup failed"
	}
}

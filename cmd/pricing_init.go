package main

import (
	"context"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/aggregate"
	"github.com/sells-group/comp-pricer/internal/arbiter"
	"github.com/sells-group/comp-pricer/internal/confidence"
	"github.com/sells-group/comp-pricer/internal/db"
	"github.com/sells-group/comp-pricer/internal/estimate"
	"github.com/sells-group/comp-pricer/internal/matcher"
	"github.com/sells-group/comp-pricer/internal/pricing"
	"github.com/sells-group/comp-pricer/internal/recorder"
	"github.com/sells-group/comp-pricer/internal/resilience"
	"github.com/sells-group/comp-pricer/internal/source"
	anthropicpkg "github.com/sells-group/comp-pricer/pkg/anthropic"
	"github.com/sells-group/comp-pricer/pkg/gemini"
	qdrantpkg "github.com/sells-group/comp-pricer/pkg/qdrant"
)

// pricingEnv holds the engine and everything that must be released after it.
type pricingEnv struct {
	Engine   *pricing.Engine
	Recorder recorder.Recorder // nil on a dry run
	sources  db.Pool
	qdrant   *qdrant.Client
}

// Close releases resources held by the pricing environment.
func (pe *pricingEnv) Close() {
	if pe.Recorder != nil {
		_ = pe.Recorder.Close()
	}
	if pe.sources != nil {
		pe.sources.Close()
	}
	if pe.qdrant != nil {
		_ = pe.qdrant.Close()
	}
}

// unavailableEmbedder stands in when no embedding key is configured, so
// every query degrades to "no match" instead of failing.
type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, eris.New("embedding service not configured")
}

// initPricing wires the matcher, source registry, aggregator, scorer and
// (unless dryRun) the recorder. Callers should defer env.Close().
func initPricing(ctx context.Context, dryRun bool) (*pricingEnv, error) {
	if err := cfg.Validate("price"); err != nil {
		return nil, err
	}
	env := &pricingEnv{}

	if !dryRun {
		rec, err := initRecorder(ctx)
		if err != nil {
			return nil, err
		}
		env.Recorder = rec
		if err := rec.Migrate(ctx); err != nil {
			env.Close()
			return nil, eris.Wrap(err, "migrate recorder")
		}
	}

	norm, err := source.NewNormalizer(cfg.Aggregate.Currency, cfg.Aggregate.Period)
	if err != nil {
		env.Close()
		return nil, err
	}

	registry := source.NewRegistry()
	if url := cfg.SourceDatabaseURL(); url != "" {
		pool, err := db.Connect(ctx, url, db.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns})
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "connect source database")
		}
		env.sources = pool
		registry = source.FromConfig(pool, cfg.Sources, norm)
	}
	zap.L().Info("sources registered", zap.Int("count", len(registry.Entries())))

	m, err := initMatcher(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	weights, err := aggregate.WeightsFromConfig(cfg.Weights)
	if err != nil {
		env.Close()
		return nil, err
	}
	zap.L().Debug("source weights loaded", zap.Stringer("weights", weights))

	agg := aggregate.New(weights, registry.MaxAges(),
		estimate.NewSalaryEstimator(cfg.Fallback, estimate.WithNormalizer(norm)),
		aggregate.WithTargetPercentile(cfg.Aggregate.TargetPercentile),
	)
	scorer := confidence.NewScorer(weights, cfg.Confidence)

	env.Engine = pricing.New(m, registry, agg, scorer, env.Recorder,
		pricing.WithUnit(cfg.Aggregate.Currency, cfg.Aggregate.Period),
	)
	return env, nil
}

// initMatcher builds the taxonomy matcher. Missing embedding or arbiter
// credentials degrade matching rather than failing startup.
func initMatcher(ctx context.Context, env *pricingEnv) (*matcher.Matcher, error) {
	retry := resilience.RetryFromConfig(cfg.Retry)
	circuit := resilience.CircuitFromConfig(cfg.Circuit)

	var embedder matcher.Embedder = unavailableEmbedder{}
	if cfg.Gemini.Key != "" {
		e, err := gemini.NewEmbedder(ctx, cfg.Gemini.Key, cfg.Gemini.EmbeddingModel,
			resilience.NewGuard("gemini", retry, circuit))
		if err != nil {
			return nil, eris.Wrap(err, "init embedder")
		}
		embedder = e
	} else {
		zap.L().Warn("PRICER_GEMINI_KEY not set, taxonomy matching disabled")
	}

	client, err := qdrantpkg.NewClient(cfg.Qdrant.URL, cfg.Qdrant.APIKey)
	if err != nil {
		return nil, eris.Wrap(err, "init taxonomy index")
	}
	env.qdrant = client
	index := qdrantpkg.NewIndex(client, cfg.Qdrant.Collection, resilience.NewGuard("qdrant", retry, circuit))

	var arb matcher.Arbiter
	if cfg.Anthropic.Key != "" {
		ac := anthropicpkg.NewClient(cfg.Anthropic.Key, time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)
		arb = arbiter.New(ac, arbiter.Config{
			Model:          cfg.Anthropic.Model,
			MaxTokens:      cfg.Anthropic.MaxTokens,
			RequestsPerSec: cfg.Anthropic.RequestsPerSec,
		}, resilience.NewGuard("anthropic", retry, circuit))
	} else {
		zap.L().Debug("PRICER_ANTHROPIC_KEY not set, ambiguous matches use vector similarity only")
	}

	return matcher.New(embedder, index, arb, matcher.Thresholds{
		TopK:           cfg.Matcher.TopK,
		High:           cfg.Matcher.HighThreshold,
		Floor:          cfg.Matcher.FloorThreshold,
		DegradedAccept: cfg.Matcher.DegradedAcceptThreshold,
	}), nil
}

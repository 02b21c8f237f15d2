package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Weights    WeightsConfig    `yaml:"weights" mapstructure:"weights"`
	Matcher    MatcherConfig    `yaml:"matcher" mapstructure:"matcher"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Fallback   FallbackConfig   `yaml:"fallback" mapstructure:"fallback"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Qdrant     QdrantConfig     `yaml:"qdrant" mapstructure:"qdrant"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where pricing results are recorded.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig configures the source adapters and the database holding the
// benchmark, listings, internal-records and candidate tables.
type SourcesConfig struct {
	DatabaseURL           string       `yaml:"database_url" mapstructure:"database_url"`
	DefaultRegion         string       `yaml:"default_region" mapstructure:"default_region"`
	TaxonomyBenchmark     SourceConfig `yaml:"taxonomy_benchmark" mapstructure:"taxonomy_benchmark"`
	ScrapedListings       SourceConfig `yaml:"scraped_listings" mapstructure:"scraped_listings"`
	InternalRecords       SourceConfig `yaml:"internal_records" mapstructure:"internal_records"`
	CandidateExpectations SourceConfig `yaml:"candidate_expectations" mapstructure:"candidate_expectations"`
}

// SourceConfig configures one source adapter.
type SourceConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAgeDays          int     `yaml:"max_age_days" mapstructure:"max_age_days"`
	MinSample           int     `yaml:"min_sample" mapstructure:"min_sample"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MaxRows             int     `yaml:"max_rows" mapstructure:"max_rows"`
}

// WeightsConfig holds the nominal source weights. File, when set, points at a
// YAML weight table that replaces the inline values.
type WeightsConfig struct {
	File                  string  `yaml:"file" mapstructure:"file"`
	TaxonomyBenchmark     float64 `yaml:"taxonomy_benchmark" mapstructure:"taxonomy_benchmark"`
	ScrapedListings       float64 `yaml:"scraped_listings" mapstructure:"scraped_listings"`
	InternalRecords       float64 `yaml:"internal_records" mapstructure:"internal_records"`
	CandidateExpectations float64 `yaml:"candidate_expectations" mapstructure:"candidate_expectations"`
	Reserved              float64 `yaml:"reserved" mapstructure:"reserved"`
}

// MatcherConfig configures taxonomy matching.
type MatcherConfig struct {
	TopK                    int     `yaml:"top_k" mapstructure:"top_k"`
	HighThreshold           float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	FloorThreshold          float64 `yaml:"floor_threshold" mapstructure:"floor_threshold"`
	DegradedAcceptThreshold float64 `yaml:"degraded_accept_threshold" mapstructure:"degraded_accept_threshold"`
}

// AggregateConfig configures the shape of the aggregated result.
type AggregateConfig struct {
	TargetPercentile float64 `yaml:"target_percentile" mapstructure:"target_percentile"`
	Currency         string  `yaml:"currency" mapstructure:"currency"`
	Period           string  `yaml:"period" mapstructure:"period"`
}

// ConfidenceConfig configures the confidence scorer.
type ConfidenceConfig struct {
	SampleSaturation float64 `yaml:"sample_saturation" mapstructure:"sample_saturation"`
	FallbackBase     float64 `yaml:"fallback_base" mapstructure:"fallback_base"`
	FallbackCap      int     `yaml:"fallback_cap" mapstructure:"fallback_cap"`
	MediumThreshold  int     `yaml:"medium_threshold" mapstructure:"medium_threshold"`
	HighThreshold    int     `yaml:"high_threshold" mapstructure:"high_threshold"`
}

// FallbackConfig holds the context-only salary heuristic tables. Bands are
// medians in the common currency and period keyed by experience level;
// levels without one use built-in monthly USD medians converted to the
// common period. Location multipliers are keyed by a lowercase location
// fragment.
type FallbackConfig struct {
	Bands               map[string]float64 `yaml:"bands" mapstructure:"bands"`
	LocationMultipliers map[string]float64 `yaml:"location_multipliers" mapstructure:"location_multipliers"`
}

// AnthropicConfig holds settings for the taxonomy arbiter.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeminiConfig holds settings for the embedding service.
type GeminiConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// QdrantConfig holds settings for the taxonomy vector index.
type QdrantConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// RetryConfig configures retries for the embedding and arbiter calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the circuit breakers guarding external services.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sources.default_region", "national")
	sourceDefaults := map[string]struct {
		enabled bool
		maxAge  int
	}{
		"taxonomy_benchmark":     {true, 730},
		"scraped_listings":       {true, 180},
		"internal_records":       {false, 365},
		"candidate_expectations": {false, 180},
	}
	for name, d := range sourceDefaults {
		v.SetDefault("sources."+name+".enabled", d.enabled)
		v.SetDefault("sources."+name+".timeout_secs", 5)
		v.SetDefault("sources."+name+".max_age_days", d.maxAge)
		v.SetDefault("sources."+name+".min_sample", 3)
		v.SetDefault("sources."+name+".similarity_threshold", 0.35)
		v.SetDefault("sources."+name+".max_rows", 500)
	}

	v.SetDefault("weights.taxonomy_benchmark", 0.40)
	v.SetDefault("weights.scraped_listings", 0.25)
	v.SetDefault("weights.internal_records", 0.15)
	v.SetDefault("weights.candidate_expectations", 0.05)
	v.SetDefault("weights.reserved", 0.15)

	v.SetDefault("matcher.top_k", 5)
	v.SetDefault("matcher.high_threshold", 0.85)
	v.SetDefault("matcher.floor_threshold", 0.30)
	v.SetDefault("matcher.degraded_accept_threshold", 0.70)

	v.SetDefault("aggregate.target_percentile", 50)
	v.SetDefault("aggregate.currency", "USD")
	v.SetDefault("aggregate.period", "month")

	v.SetDefault("confidence.sample_saturation", 50)
	v.SetDefault("confidence.fallback_base", 10)
	v.SetDefault("confidence.fallback_cap", 30)
	v.SetDefault("confidence.medium_threshold", 40)
	v.SetDefault("confidence.high_threshold", 70)

	v.SetDefault("fallback.location_multipliers", map[string]float64{
		"san francisco": 1.35,
		"new york":      1.30,
		"seattle":       1.25,
		"boston":        1.20,
		"remote":        1.00,
	})

	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("anthropic.requests_per_sec", 5)
	v.SetDefault("anthropic.timeout_secs", 20)
	v.SetDefault("gemini.embedding_model", "text-embedding-004")
	v.SetDefault("qdrant.url", "http://localhost:6334")
	v.SetDefault("qdrant.collection", "job_taxonomy")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 250)
	v.SetDefault("retry.max_backoff_ms", 4000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks that the settings required by a command are present.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "price":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
		if c.anySourceEnabled() && c.sourceDatabaseURL() == "" {
			errs = append(errs, "sources.database_url (or store.database_url) is required when a source is enabled")
		}
		if c.Matcher.FloorThreshold > c.Matcher.HighThreshold {
			errs = append(errs, "matcher.floor_threshold must not exceed matcher.high_threshold")
		}
	case "history", "migrate":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SourceDatabaseURL returns the database holding the source tables, which
// defaults to the store database.
func (c *Config) SourceDatabaseURL() string {
	return c.sourceDatabaseURL()
}

func (c *Config) sourceDatabaseURL() string {
	if c.Sources.DatabaseURL != "" {
		return c.Sources.DatabaseURL
	}
	if c.Store.Driver == "postgres" {
		return c.Store.DatabaseURL
	}
	return ""
}

func (c *Config) anySourceEnabled() bool {
	s := c.Sources
	return s.TaxonomyBenchmark.Enabled || s.ScrapedListings.Enabled ||
		s.InternalRecords.Enabled || s.CandidateExpectations.Enabled
}

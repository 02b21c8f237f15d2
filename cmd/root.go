package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "comp-pricer",
	Short: "Compensation pricing engine",
	Long:  "Matches a job to the occupational taxonomy, gathers salary observations from every configured source, and records a weighted percentile ladder with a confidence score.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.L().Debug("config loaded", configFields(cfg)...)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// configFields summarizes the pricing unit, weight table and enabled
// sources a run will use.
func configFields(c *config.Config) []zap.Field {
	weights := "inline"
	if c.Weights.File != "" {
		weights = c.Weights.File
	}
	var enabled []string
	for name, sc := range map[string]config.SourceConfig{
		"taxonomy_benchmark":     c.Sources.TaxonomyBenchmark,
		"scraped_listings":       c.Sources.ScrapedListings,
		"internal_records":       c.Sources.InternalRecords,
		"candidate_expectations": c.Sources.CandidateExpectations,
	} {
		if sc.Enabled {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)

	return []zap.Field{
		zap.String("store_driver", c.Store.Driver),
		zap.String("currency", c.Aggregate.Currency),
		zap.String("period", c.Aggregate.Period),
		zap.Float64("target_percentile", c.Aggregate.TargetPercentile),
		zap.String("weights", weights),
		zap.Strings("sources", enabled),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

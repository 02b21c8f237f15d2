package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/model"
)

var (
	priceTitle       string
	priceDescription string
	priceLocation    string
	priceExpMin      float64
	priceExpMax      float64
	priceRequestID   string
	priceDryRun      bool
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a single job",
	Long:  "Runs one pricing calculation and prints the result as JSON. The result is recorded unless --dry-run is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPricing(ctx, priceDryRun)
		if err != nil {
			return err
		}
		defer env.Close()

		requestID := priceRequestID
		if requestID == "" {
			requestID = uuid.New().String()
		}

		result, err := env.Engine.Price(ctx, requestID, priceQuery(cmd))
		if err != nil {
			return err
		}

		zap.L().Info("pricing complete",
			zap.String("result_id", result.ID),
			zap.Float64("target", result.Target),
			zap.Int("confidence", result.Confidence),
			zap.Bool("recorded", !priceDryRun),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// priceQuery builds the job query from flags. Experience is only set when
// one of the experience flags was given.
func priceQuery(cmd *cobra.Command) model.JobQuery {
	q := model.JobQuery{
		Title:       priceTitle,
		Description: priceDescription,
		Location:    priceLocation,
	}
	if cmd.Flags().Changed("exp-min") || cmd.Flags().Changed("exp-max") {
		q.Experience = &model.ExperienceRange{MinYears: priceExpMin, MaxYears: priceExpMax}
	}
	return q
}

func init() {
	priceCmd.Flags().StringVar(&priceTitle, "title", "", "job title (required)")
	priceCmd.Flags().StringVar(&priceDescription, "description", "", "job description")
	priceCmd.Flags().StringVar(&priceLocation, "location", "", "job location, e.g. \"Austin, TX\"")
	priceCmd.Flags().Float64Var(&priceExpMin, "exp-min", 0, "minimum years of experience")
	priceCmd.Flags().Float64Var(&priceExpMax, "exp-max", 0, "maximum years of experience")
	priceCmd.Flags().StringVar(&priceRequestID, "request-id", "", "caller request id (default: random uuid)")
	priceCmd.Flags().BoolVar(&priceDryRun, "dry-run", false, "price without recording the result")
	_ = priceCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(priceCmd)
}

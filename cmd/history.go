package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	historyRequestID string
	historyResultID  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded pricing results",
	Long:  "Prints one recorded result by --id, or every result recorded for --request-id in creation order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (historyRequestID == "") == (historyResultID == "") {
			return eris.New("exactly one of --request-id or --id is required")
		}
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		ctx := cmd.Context()
		rec, err := initRecorder(ctx)
		if err != nil {
			return err
		}
		defer rec.Close() //nolint:errcheck

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if historyResultID != "" {
			r, err := rec.Get(ctx, historyResultID)
			if err != nil {
				return eris.Wrap(err, "get result")
			}
			return enc.Encode(r)
		}

		results, err := rec.ListByRequest(ctx, historyRequestID)
		if err != nil {
			return eris.Wrap(err, "list results")
		}
		return enc.Encode(results)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyRequestID, "request-id", "", "list every result for a request")
	historyCmd.Flags().StringVar(&historyResultID, "id", "", "show a single result")
	rootCmd.AddCommand(historyCmd)
}

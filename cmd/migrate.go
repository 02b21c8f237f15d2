package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply recorder schema migrations",
	Long:  "Creates or upgrades the pricing_results and pricing_contributions tables for the configured store driver.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		ctx := cmd.Context()
		rec, err := initRecorder(ctx)
		if err != nil {
			return err
		}
		defer rec.Close() //nolint:errcheck

		if err := rec.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate recorder")
		}

		zap.L().Info("all migrations applied successfully", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var staleAfter time.Duration

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Fail enrichment batches that were dispatched but never settled",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.close(context.Background()) }()

		after := cfg.Enrichment.StaleAfter
		if staleAfter > 0 {
			after = staleAfter
		}
		report, err := a.enrichment.RecoverStale(cmd.Context(), after)
		if err != nil {
			return err
		}
		logger.Info("recovery finished",
			zap.Int("batches", report.Batches),
			zap.Int64("persons", report.Persons),
		)
		return nil
	},
}

func init() {
	recoverCmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "override enrichment.stale_after")
}

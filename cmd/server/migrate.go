package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/db"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply (or roll back) the embedded database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if cfg.Database.Driver != "postgres" {
			return errors.New("migrate requires database.driver=postgres")
		}

		conn, err := db.NewConnection(cmd.Context(), cfg.Database.DB(), logger.Named("db"))
		if err != nil {
			return err
		}
		defer conn.Close()

		if rollbackSteps > 0 {
			if err := db.RollbackMigrations(conn.Pool, rollbackSteps); err != nil {
				return err
			}
			logger.Info("migrations rolled back", zap.Int("steps", rollbackSteps))
			return nil
		}
		return db.RunMigrations(conn.Pool, logger)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "down", 0, "roll back this many migrations instead of applying")
}

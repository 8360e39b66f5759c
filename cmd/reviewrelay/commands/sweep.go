package commands

import (
	"github.com/spf13/cobra"

	"ReviewRelay/internal/app"
	"ReviewRelay/internal/config"
	"ReviewRelay/internal/logging"
)

// sweepCmd performs a single ingestion pass and exits, for cron-style
// deployments and manual backfills.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one ingestion sweep over all locations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load(configPath)
		logger := logging.New(cfg.Logging.Level)

		application, err := app.New(cfg, logger)
		if err != nil {
			logger.Error("startup failed", "error", err)
			return err
		}
		defer application.Close()

		if err := application.Sweep(cmd.Context()); err != nil {
			logger.Error("sweep failed", "error", err)
			return err
		}
		return nil
	},
}

package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ReviewRelay/internal/app"
	"ReviewRelay/internal/config"
	"ReviewRelay/internal/logging"
)

// serveCmd runs the full pipeline: recurring ingestion sweeps plus the
// callback webhook.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review pipeline and callback webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load(configPath)
		logger := logging.New(cfg.Logging.Level)

		application, err := app.New(cfg, logger)
		if err != nil {
			logger.Error("startup failed", "error", err)
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(
			cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := application.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("application stopped", "error", err)
			return err
		}
		return nil
	},
}

package commands

import (
	"github.com/spf13/cobra"
)

// configPath is the YAML configuration file path.
var configPath string

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "reviewrelay",
	Short: "Review reply pipeline daemon",
	Long: `ReviewRelay ingests customer reviews from their origin platform, drafts
AI replies, and routes each draft through chat-based operator approval.
The approved text is handed back to the operator for manual posting.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to YAML config (default: $REVIEW_RELAY_CONFIG)",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

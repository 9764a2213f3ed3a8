package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/feral-kitty/fifi/cmd/fifi/commands"
	"github.com/feral-kitty/fifi/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fifi",
	Short: "fifi - Discord moderation bot engine",
	Long: `fifi - scheduled announcements and moderation tooling for Discord.

Available commands:
  run     - Start the announcement dispatcher
  jobs    - Manage scheduled announcement jobs
  roster  - Export the member roster report
  config  - Inspect and update configuration
  version - Show version information

Examples:
  fifi run                 # Start dispatching scheduled announcements
  fifi jobs ls             # List scheduled jobs
  fifi jobs add --name movie-night --channel 123 --type weekly --days 4 --time 19:00
  fifi roster export       # Write server_roster.xlsx`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.InitializeWithLevel(jsonOutput, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.RosterCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

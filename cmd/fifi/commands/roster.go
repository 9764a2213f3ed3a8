package commands

import (
	"context"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/feral-kitty/fifi/config"
	"github.com/feral-kitty/fifi/db"
	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/logger"
	"github.com/feral-kitty/fifi/roster"
)

// RosterCmd groups roster report operations.
var RosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Member roster reporting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var rosterExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the roster workbook",
	Long: `Export the member roster workbook (current members, left members,
bans) built from recorded join/leave/ban events.

Example:
  fifi roster export
  fifi roster export --out /tmp/roster.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return runRosterExport(out)
	},
}

func init() {
	rosterExportCmd.Flags().String("out", roster.ReportFilename, "Output file path")
	RosterCmd.AddCommand(rosterExportCmd)
}

func runRosterExport(out string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	conn, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := roster.NewEventStore(conn, logger.Logger)
	raw, err := roster.BuildReport(ctx, store)
	if err != nil {
		return errors.Wrap(err, "build report")
	}

	if err := os.WriteFile(out, raw, config.DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}

	pterm.Success.Printf("Roster report written to %s (%d bytes)\n", out, len(raw))
	return nil
}

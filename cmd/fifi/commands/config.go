package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/feral-kitty/fifi/config"
	"github.com/feral-kitty/fifi/errors"
)

// ConfigCmd groups configuration inspection and updates.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the user config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.UserConfigPath())
	},
}

var configSetTickCmd = &cobra.Command{
	Use:   "set-tick <seconds>",
	Short: "Set the dispatcher tick interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.Atoi(args[0])
		if err != nil || seconds < 1 {
			return errors.Wrapf(errors.ErrInvalidRequest, "tick seconds %q", args[0])
		}
		if err := config.SetSchedulerTickSeconds(seconds); err != nil {
			return errors.Wrap(err, "save config")
		}
		pterm.Success.Printf("scheduler.tick_seconds set to %d\n", seconds)
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configPathCmd)
	ConfigCmd.AddCommand(configSetTickCmd)
}

func runConfigShow() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	token := "(not set)"
	if cfg.Discord.Token != "" {
		token = "(set)"
	}

	fmt.Println("discord:")
	fmt.Printf("  token:    %s\n", token)
	fmt.Printf("  api_base: %s\n", cfg.Discord.APIBase)
	fmt.Println("state:")
	fmt.Printf("  path: %s\n", cfg.State.Path)
	fmt.Println("database:")
	fmt.Printf("  path: %s\n", cfg.Database.Path)
	fmt.Println("scheduler:")
	fmt.Printf("  tick_seconds:             %d\n", cfg.Scheduler.TickSeconds)
	fmt.Printf("  delivery_timeout_seconds: %d\n", cfg.Scheduler.DeliveryTimeoutSeconds)
	fmt.Printf("  delivery_attempts:        %d\n", cfg.Scheduler.DeliveryAttempts)
	return nil
}

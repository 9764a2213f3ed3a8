package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feral-kitty/fifi/config"
	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/logger"
	"github.com/feral-kitty/fifi/schedule"
	"github.com/feral-kitty/fifi/state"
)

// RunCmd starts the announcement dispatcher.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the announcement dispatcher",
	Long: `Start the scheduled announcement dispatcher.

The dispatcher scans the job store on a fixed interval and delivers every
due announcement to its channels. It runs until interrupted (SIGINT/SIGTERM)
and picks up config file changes without a restart.

Example:
  fifi run
  fifi run -v          # with informational logging`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDispatcher()
	},
}

func runDispatcher() error {
	cfg, stateStore, jobStore, err := openStores()
	if err != nil {
		return err
	}
	if cfg.Discord.Token == "" {
		return errors.WithHint(
			errors.New("no Discord token configured"),
			"set FIFI_DISCORD_TOKEN or discord.token in fifi.toml")
	}

	deliverer := newDeliverer(cfg)

	dispatchCfg := schedule.DefaultDispatcherConfig()
	if cfg.Scheduler.TickSeconds > 0 {
		dispatchCfg.Interval = time.Duration(cfg.Scheduler.TickSeconds) * time.Second
	}
	if cfg.Scheduler.DeliveryTimeoutSeconds > 0 {
		dispatchCfg.DeliveryTimeout = time.Duration(cfg.Scheduler.DeliveryTimeoutSeconds) * time.Second
	}
	if cfg.Scheduler.DeliveryAttempts > 0 {
		dispatchCfg.DeliveryAttempts = cfg.Scheduler.DeliveryAttempts
	}

	// The watcher must be in place before the first tick so dispatcher
	// persists are recognized as our own writes.
	stateWatcher := startStateWatcher(stateStore, jobStore)
	if stateWatcher != nil {
		defer stateWatcher.Stop()
	}

	dispatcher := schedule.NewDispatcher(jobStore, deliverer, dispatchCfg, logger.ComponentLogger("dispatcher"))
	dispatcher.Start()
	logger.Infow("Dispatcher started",
		"tick", dispatchCfg.Interval.String(),
		"jobs", len(jobStore.List()))

	watcher := startConfigWatcher()
	if watcher != nil {
		defer watcher.Stop()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Infow("Shutting down", "signal", sig.String())

	dispatcher.Stop()
	return nil
}

// startStateWatcher feeds jobs written by another process, typically the
// jobs subcommands, into the running dispatcher's store. Without it a
// foreign edit would be overwritten by the daemon's next persist.
func startStateWatcher(stateStore *state.Store, jobStore *schedule.Store) *state.Watcher {
	watcher, err := state.NewWatcher(stateStore)
	if err != nil {
		logger.Warnw("State watcher unavailable, external job edits need a restart", "error", err)
		return nil
	}
	watcher.OnReload(func(jobs []*schedule.Job) error {
		jobStore.Reload(jobs)
		return nil
	})
	watcher.Start()
	return watcher
}

// startConfigWatcher watches the user config file when it exists. Reload
// failures only log; the running dispatcher keeps its current settings.
func startConfigWatcher() *config.Watcher {
	path := config.UserConfigPath()
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(path)
	if err != nil {
		logger.Warnw("Config watcher unavailable", "path", path, "error", err)
		return nil
	}
	watcher.OnReload(func(cfg *config.Config) error {
		logger.Infow("Configuration changed, restart to apply scheduler settings",
			"tick_seconds", cfg.Scheduler.TickSeconds)
		return nil
	})
	config.SetGlobalWatcher(watcher)
	watcher.Start()
	return watcher
}

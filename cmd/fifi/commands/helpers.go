package commands

import (
	"net/http"
	"time"

	"github.com/feral-kitty/fifi/config"
	"github.com/feral-kitty/fifi/delivery"
	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/logger"
	"github.com/feral-kitty/fifi/schedule"
	"github.com/feral-kitty/fifi/state"
)

// openStores loads the config, the state document, and the job store built
// on top of it. The state store doubles as the job persistence sink.
func openStores() (*config.Config, *state.Store, *schedule.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load config")
	}

	stateStore, err := state.Load(cfg.State.Path, logger.ComponentLogger("state"))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load state")
	}

	jobStore := schedule.NewStore(stateStore.Jobs(), stateStore, logger.ComponentLogger("schedule"))
	return cfg, stateStore, jobStore, nil
}

// newDeliverer builds the Discord client from config.
func newDeliverer(cfg *config.Config) *delivery.Client {
	timeout := time.Duration(cfg.Scheduler.DeliveryTimeoutSeconds) * time.Second
	if cfg.Discord.APIBase != "" && cfg.Discord.APIBase != delivery.DefaultAPIBase {
		// A non-default API base usually points at a local proxy, where the
		// private IP blocking of the default client would get in the way.
		return delivery.NewClientWithHTTP(&http.Client{Timeout: timeout}, cfg.Discord.APIBase, cfg.Discord.Token)
	}
	return delivery.NewClient(cfg.Discord.Token, timeout)
}

func formatRunTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// Package config loads and watches the bot configuration. Files are TOML,
// merged in precedence order (system, user, project), with FIFI_* environment
// variables on top.
package config

import "fmt"

// Config is the full bot configuration.
type Config struct {
	Discord   DiscordConfig   `mapstructure:"discord"`
	State     StateConfig     `mapstructure:"state"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Safeword  SafewordConfig  `mapstructure:"safeword"`
	Roster    RosterConfig    `mapstructure:"roster"`
}

// DiscordConfig configures the REST client used for message delivery.
type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	APIBase string `mapstructure:"api_base"` // override for tests and proxies
}

// StateConfig locates the JSON state document.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig configures the SQLite event database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig tunes the announcement dispatcher.
type SchedulerConfig struct {
	TickSeconds            int `mapstructure:"tick_seconds"`             // dispatch poll interval (default: 30)
	DeliveryTimeoutSeconds int `mapstructure:"delivery_timeout_seconds"` // per-attempt send timeout (default: 10)
	DeliveryAttempts       int `mapstructure:"delivery_attempts"`        // attempts per channel (default: 3)
}

// SafewordConfig holds deployment-level safeword settings. Behavioral
// settings (triggers, roles, cooldown) live in the state document.
type SafewordConfig struct {
	LogChannelID int64 `mapstructure:"log_channel_id"`
}

// RosterConfig configures the roster report.
type RosterConfig struct {
	ReportChannelID int64 `mapstructure:"report_channel_id"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// String summarizes the config without exposing the token.
func (c *Config) String() string {
	return fmt.Sprintf("Config{State: %s, Database: %s, Scheduler: {TickSeconds: %d}}",
		c.State.Path, c.Database.Path, c.Scheduler.TickSeconds)
}

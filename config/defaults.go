package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Discord defaults
	v.SetDefault("discord.api_base", "https://discord.com/api/v10")

	// State and database defaults
	v.SetDefault("state.path", "fifi_state.json")
	v.SetDefault("database.path", "fifi.db")

	// Scheduler defaults
	v.SetDefault("scheduler.tick_seconds", 30)
	v.SetDefault("scheduler.delivery_timeout_seconds", 10)
	v.SetDefault("scheduler.delivery_attempts", 3)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to
// environment variables so they never need to live in a file.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("discord.token", "FIFI_DISCORD_TOKEN")
	v.BindEnv("state.path", "FIFI_STATE_PATH")
	v.BindEnv("database.path", "FIFI_DATABASE_PATH")
}

package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/logger"
)

// createBackup rotates backups (.back1, .back2, .back3) before a config
// write. The current file becomes .back1.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete oldest config backup", "path", back3, "error", err)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "read config for backup")
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "create .back1")
	}

	return nil
}

// Save writes settings to the user config file with a rotating backup,
// merging over whatever the file already holds.
func Save(settings map[string]interface{}) error {
	configPath := UserConfigPath()
	if configPath == "" {
		return errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	existing := make(map[string]interface{})
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &existing); err != nil {
			return errors.Wrap(err, "parse existing config")
		}
	}
	for key, value := range settings {
		existing[key] = value
	}

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "create backup")
	}

	data, err := toml.Marshal(existing)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "write config")
	}

	return nil
}

// SetSchedulerTickSeconds updates scheduler.tick_seconds in the user config.
func SetSchedulerTickSeconds(seconds int) error {
	return Save(map[string]interface{}{
		"scheduler": map[string]interface{}{"tick_seconds": seconds},
	})
}

// Package config handles the small, non-secret settings file that sits
// alongside the vault database, the same way the teacher keeps
// vault.meta as a plain JSON file next to vault.db rather than reaching
// for a configuration library.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the settings file's name inside the vault root.
const FileName = "config.json"

// FileMode matches the rest of the vault root's non-secret files.
const FileMode = 0o600

// Config holds settings that are useful before the vault is ever
// unlocked (or that a user wants to change without touching encrypted
// rows), distinct from the vault-wide auto_lock_timeout stored in
// vault_meta once a vault exists.
type Config struct {
	DefaultEnvironment     string `json:"default_environment"`
	AutoLockTimeoutMinutes int    `json:"auto_lock_timeout_minutes"`
	SessionTimeoutMinutes  int    `json:"session_timeout_minutes"`
}

// Default returns the settings a freshly created vault root starts with.
func Default() Config {
	return Config{
		DefaultEnvironment:     "all",
		AutoLockTimeoutMinutes: 15,
		SessionTimeoutMinutes:  60,
	}
}

func path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads config.json from root, returning Default() if the file
// doesn't exist yet. A corrupted file is also treated as absent, the
// same recovery rule the session cache applies to its own JSON file.
func Load(root string) (Config, error) {
	data, err := os.ReadFile(path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), nil
	}
	return cfg, nil
}

// Save writes cfg to root's config.json.
func Save(root string, cfg Config) error {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return fmt.Errorf("config: failed to create vault directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path(root), data, FileMode); err != nil {
		return fmt.Errorf("config: failed to write config file: %w", err)
	}
	return nil
}

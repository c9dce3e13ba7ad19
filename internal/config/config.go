// Package config holds the application's JSON configuration file: where
// the token store lives, where SSH keys are discovered, and sync tuning
// knobs. A missing file yields the defaults rather than an error.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the on-disk application configuration.
type Config struct {
	TokenStorePath string `json:"token_store_path,omitempty"`
	SSHDir         string `json:"ssh_dir,omitempty"`
	SettleDelay    string `json:"settle_delay,omitempty"`
	PullStrategy   string `json:"pull_strategy,omitempty"`
}

// DefaultConfig provides default configuration values.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		TokenStorePath: filepath.Join(home, ".githeart", "tokens.json"),
		SSHDir:         filepath.Join(home, ".ssh"),
		SettleDelay:    "500ms",
		PullStrategy:   "merge",
	}
}

// LoadConfig loads configuration from a file. A missing file is not an
// error; the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.MergeDefaults()
	return cfg, nil
}

// SaveConfig saves configuration to a file, creating the parent directory
// if needed.
func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeDefaults merges default values for unset fields.
func (c *Config) MergeDefaults() {
	def := DefaultConfig()
	if c.TokenStorePath == "" {
		c.TokenStorePath = def.TokenStorePath
	}
	if c.SSHDir == "" {
		c.SSHDir = def.SSHDir
	}
	if c.SettleDelay == "" {
		c.SettleDelay = def.SettleDelay
	}
	if c.PullStrategy == "" {
		c.PullStrategy = def.PullStrategy
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.SettleDelay); err != nil {
		return fmt.Errorf("invalid settle delay: %w", err)
	}
	if c.PullStrategy != "merge" && c.PullStrategy != "rebase" {
		return fmt.Errorf("invalid pull strategy %q: must be merge or rebase", c.PullStrategy)
	}
	return nil
}

// SettleDuration returns the parsed settling delay. Validate must have
// accepted the config first.
func (c *Config) SettleDuration() time.Duration {
	d, err := time.ParseDuration(c.SettleDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

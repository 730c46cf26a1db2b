// Package config loads the attend configuration: a YAML file in an
// XDG-compliant config directory, with ATTEND_* environment variables
// layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	UserID      string        `yaml:"user_id" envconfig:"USER_ID"`
	SnapshotDir string        `yaml:"snapshot_dir" envconfig:"SNAPSHOT_DIR"`
	FocusKey    string        `yaml:"focus_key" envconfig:"FOCUS_KEY"`
	TaskAPI     TaskAPIConfig `yaml:"task_api"`
}

// TaskAPIConfig configures the task-creation endpoint.
type TaskAPIConfig struct {
	BaseURL    string `yaml:"base_url" envconfig:"TASK_API_URL"`
	Token      string `yaml:"token" envconfig:"TASK_API_TOKEN"`
	BatchLimit int    `yaml:"batch_limit" envconfig:"TASK_BATCH_LIMIT"`
}

// GetConfigDir returns the XDG-compliant config directory.
func GetConfigDir() (string, error) {
	// Explicit override (useful for tests and portable installs)
	if override := os.Getenv("ATTEND_CONFIG_DIR"); override != "" {
		return override, nil
	}

	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "attend"), nil
}

// GetDataDir returns the platform-specific data directory, holding the
// local state database.
func GetDataDir() (string, error) {
	if override := os.Getenv("ATTEND_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Attend"), nil
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "attend"), nil
	}

	return filepath.Join(home, ".local", "share", "attend"), nil
}

// StatePath returns the path of the local state database.
func StatePath() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "attend.db"), nil
}

// Load reads config.yaml from the config dir (a missing file yields
// defaults) and applies ATTEND_* environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		UserID: "default",
		TaskAPI: TaskAPIConfig{
			BatchLimit: 10,
		},
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process("attend", cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	if cfg.UserID == "" {
		cfg.UserID = "default"
	}
	if cfg.TaskAPI.BatchLimit <= 0 {
		cfg.TaskAPI.BatchLimit = 10
	}
	return cfg, nil
}

// Save writes the config back to the config dir.
func (c *Config) Save() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

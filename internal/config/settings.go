// Package config provides configuration file parsing for thinktwice.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir returns the thinktwice config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/thinktwice if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "thinktwice"), nil
}

// Settings holds the monitoring configuration. There is no mid-run reload;
// the daemon reads the file once at startup.
type Settings struct {
	// IdlePollingIntervalSeconds is the poll delay while no blockable app
	// is in the foreground.
	IdlePollingIntervalSeconds int `yaml:"idle_polling_interval_seconds"`

	// PollingIntervalSeconds is the retry delay after a failed poll
	// iteration.
	PollingIntervalSeconds int `yaml:"polling_interval_seconds"`

	// ActivePollingIntervalMS is the poll delay while the foreground app
	// should be showing a blocker. Sub-second so re-blocking feels
	// immediate.
	ActivePollingIntervalMS int `yaml:"active_polling_interval_ms"`

	// ShowFollowupScreen gates launching the follow-up prompt after a
	// restricted-app session ends.
	ShowFollowupScreen bool `yaml:"show_followup_screen"`
}

// Default returns the settings used when no config file exists.
func Default() *Settings {
	return &Settings{
		IdlePollingIntervalSeconds: 5,
		PollingIntervalSeconds:     5,
		ActivePollingIntervalMS:    500,
		ShowFollowupScreen:         true,
	}
}

// Load reads {dir}/config.yaml. A missing file returns defaults without an
// error; a malformed file is an error.
func Load(dir string) (*Settings, error) {
	path := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (s *Settings) validate() error {
	if s.IdlePollingIntervalSeconds <= 0 {
		return fmt.Errorf("idle_polling_interval_seconds must be positive, got %d", s.IdlePollingIntervalSeconds)
	}
	if s.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("polling_interval_seconds must be positive, got %d", s.PollingIntervalSeconds)
	}
	if s.ActivePollingIntervalMS <= 0 {
		return fmt.Errorf("active_polling_interval_ms must be positive, got %d", s.ActivePollingIntervalMS)
	}
	return nil
}

// IdleInterval returns the idle poll delay as a duration.
func (s *Settings) IdleInterval() time.Duration {
	return time.Duration(s.IdlePollingIntervalSeconds) * time.Second
}

// RetryInterval returns the error-retry delay as a duration.
func (s *Settings) RetryInterval() time.Duration {
	return time.Duration(s.PollingIntervalSeconds) * time.Second
}

// ActiveInterval returns the active poll delay as a duration.
func (s *Settings) ActiveInterval() time.Duration {
	return time.Duration(s.ActivePollingIntervalMS) * time.Millisecond
}

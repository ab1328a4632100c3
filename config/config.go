// Package config loads pondctl's YAML configuration with environment
// variable expansion and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config is the full pondctl configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	UI     UIConfig     `yaml:"ui"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.UI.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// ServerConfig holds the API endpoint and credentials.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(isHTTPURL)),
	)
}

func isHTTPURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if len(s) >= 7 && s[:7] == "http://" {
		return nil
	}
	if len(s) >= 8 && s[:8] == "https://" {
		return nil
	}
	return errors.New("must start with http:// or https://")
}

// UIConfig holds admin interface tuning.
type UIConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DefaultRoute    string        `yaml:"default_route"`
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("10s",
// "1m30s") rather than raw nanoseconds.
func (c *UIConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		RefreshInterval string `yaml:"refresh_interval"`
		DefaultRoute    string `yaml:"default_route"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.RefreshInterval != "" {
		d, err := time.ParseDuration(raw.RefreshInterval)
		if err != nil {
			return fmt.Errorf("refresh_interval: %w", err)
		}
		c.RefreshInterval = d
	}
	if raw.DefaultRoute != "" {
		c.DefaultRoute = raw.DefaultRoute
	}
	return nil
}

// Validate validates the UI configuration.
func (c *UIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RefreshInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.DefaultRoute, validation.Required),
	)
}

// SyncConfig holds the local directory mirrored by pondctl sync.
type SyncConfig struct {
	LocalDir string `yaml:"local_dir"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LocalDir, validation.Required),
	)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level slog.Level `yaml:"level"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			APIKey:  os.Getenv("DUCKPOND_API_KEY"),
		},
		UI: UIConfig{
			RefreshInterval: 10 * time.Second,
			DefaultRoute:    "/notebooks",
		},
		Sync: SyncConfig{
			LocalDir: "./notebooks",
		},
		Log: LogConfig{
			Level: slog.LevelInfo,
		},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pondctl.yaml"
	}
	return filepath.Join(home, ".config", "pondctl", "config.yaml")
}

// Load reads the YAML file at path into target, expanding ${VAR}
// references from the environment before parsing and validating the
// result. A missing file at the default path is not an error; the
// defaults stand.
func Load(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath() {
			return target.Validate()
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := target.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

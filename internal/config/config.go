// Package config loads Planward configuration.
//
// Configuration is merged from three sources, lowest precedence first:
// built-in defaults, ~/.planward/config.yaml, and PLANWARD_* environment
// variables. The backend endpoint and anonymous key are required; startup
// fails without them.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Timeouts bounds every wait in the client. Each expired bound degrades to
// an empty result rather than an error.
type Timeouts struct {
	// SessionResolve bounds the initial session lookup on startup.
	SessionResolve time.Duration `mapstructure:"session_resolve"`

	// ProfileLoad bounds the extended profile fetch after identity resolution.
	ProfileLoad time.Duration `mapstructure:"profile_load"`

	// DefaultCategoryProbe bounds the first-load default category check.
	DefaultCategoryProbe time.Duration `mapstructure:"default_category_probe"`

	// CollectionLoad bounds each of the category and task fetches.
	CollectionLoad time.Duration `mapstructure:"collection_load"`

	// Bootstrap bounds the entire initial load sequence.
	Bootstrap time.Duration `mapstructure:"bootstrap"`
}

// Log configures the process logger.
type Log struct {
	// File is the rotating log file path. Empty means stderr only.
	File string `mapstructure:"file"`

	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups is how many rotated files to keep.
	MaxBackups int `mapstructure:"max_backups"`
}

// Config is the full client configuration.
type Config struct {
	// BackendURL is the hosted backend endpoint, e.g. https://xyz.supabase.co
	BackendURL string `mapstructure:"backend_url"`

	// AnonKey is the anonymous API key sent with every request.
	AnonKey string `mapstructure:"anon_key"`

	Timeouts Timeouts `mapstructure:"timeouts"`
	Log      Log      `mapstructure:"log"`
}

// DefaultConfig returns the built-in defaults. Timeout values match the
// original deployment and trade completeness for responsiveness.
func DefaultConfig() *Config {
	return &Config{
		Timeouts: Timeouts{
			SessionResolve:       3 * time.Second,
			ProfileLoad:          2 * time.Second,
			DefaultCategoryProbe: 1500 * time.Millisecond,
			CollectionLoad:       2 * time.Second,
			Bootstrap:            4 * time.Second,
		},
		Log: Log{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Dir returns the per-user planward directory (~/.planward), creating it
// if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".planward")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Load reads configuration from defaults, the config file, and environment.
//
// The config file path defaults to ~/.planward/config.yaml and can be
// overridden with PLANWARD_CONFIG. A missing file is fine; missing or
// malformed backend credentials are not.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PLANWARD")
	v.AutomaticEnv()
	_ = v.BindEnv("backend_url")
	_ = v.BindEnv("anon_key")

	path := os.Getenv("PLANWARD_CONFIG")
	if path == "" {
		if dir, err := Dir(); err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			// No config file; environment and defaults must carry it.
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required backend credentials. This is the fatal
// startup gate: the client cannot do anything without an endpoint and key.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required (set PLANWARD_BACKEND_URL or config.yaml)")
	}
	if c.AnonKey == "" {
		return fmt.Errorf("anon_key is required (set PLANWARD_ANON_KEY or config.yaml)")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url %q is not a valid URL", c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend_url %q must be http or https", c.BackendURL)
	}
	return nil
}

// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no
// --config flag is given.
const EnvConfigPath = "DOTMATRIX_CONFIG"

// SSOProviderPolicy decides what happens to an m.login.sso flow that
// lists identity providers.
type SSOProviderPolicy string

const (
	// SSOExpand offers one login choice per identity provider.
	SSOExpand SSOProviderPolicy = "expand"
	// SSODrop discards the whole flow.
	SSODrop SSOProviderPolicy = "drop"
)

// Theme selects the colour palette.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Config is the complete dotmatrix configuration.
type Config struct {
	// Homeserver pre-fills the homeserver field of the login form.
	Homeserver string `yaml:"homeserver"`

	Login   LoginConfig   `yaml:"login"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
	UI      UIConfig      `yaml:"ui"`
}

// LoginConfig configures discovery and authentication.
type LoginConfig struct {
	// DeviceDisplayName is sent as initial_device_display_name on login.
	DeviceDisplayName string `yaml:"device_display_name"`

	// SSOProviders is the identity provider policy. Default: expand.
	SSOProviders SSOProviderPolicy `yaml:"sso_providers"`

	// SSOListenAddress is where the SSO callback server listens. Port 0
	// picks a free port. Must be a loopback address.
	SSOListenAddress string `yaml:"sso_listen_address"`

	// WellKnown enables .well-known/matrix/client lookups for bare
	// server names.
	WellKnown bool `yaml:"well_known"`
}

// SyncConfig configures the /sync long-poll and its supervision.
type SyncConfig struct {
	// Timeout is the server-side long-poll timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is the number of consecutive transient failures
	// tolerated before the connection is reported lost.
	MaxAttempts int `yaml:"max_attempts"`

	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// FilterFile optionally replaces the built-in sync filter with a
	// JSONC document.
	FilterFile string `yaml:"filter_file"`
}

// LoggingConfig configures slog output. The terminal belongs to the UI,
// so records only reach a file or the status line.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// File receives JSON log records. Empty disables file logging.
	File string `yaml:"file"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	// FrameInterval is the period of the poll-and-render tick.
	FrameInterval time.Duration `yaml:"frame_interval"`

	Theme Theme `yaml:"theme"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Homeserver: "matrix.org",
		Login: LoginConfig{
			DeviceDisplayName: "Dotmatrix",
			SSOProviders:      SSOExpand,
			SSOListenAddress:  "127.0.0.1:0",
			WellKnown:         true,
		},
		Sync: SyncConfig{
			Timeout:        30 * time.Second,
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			FrameInterval: 50 * time.Millisecond,
			Theme:         ThemeAuto,
		},
	}
}

// Resolve returns the configuration for a process. flagPath wins over
// DOTMATRIX_CONFIG; with neither, Default is returned.
func Resolve(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, merged over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	home := os.Getenv("HOME")
	vars := map[string]string{
		"HOME":           home,
		"XDG_STATE_HOME": os.Getenv("XDG_STATE_HOME"),
	}
	if vars["XDG_STATE_HOME"] == "" && home != "" {
		vars["XDG_STATE_HOME"] = filepath.Join(home, ".local", "state")
	}

	c.Logging.File = expandVars(c.Logging.File, vars)
	c.Sync.FilterFile = expandVars(c.Sync.FilterFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. vars is
// consulted before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Login.DeviceDisplayName) == "" {
		errs = append(errs, fmt.Errorf("login.device_display_name is required"))
	}

	policies := []SSOProviderPolicy{SSOExpand, SSODrop}
	if !slices.Contains(policies, c.Login.SSOProviders) {
		errs = append(errs, fmt.Errorf("login.sso_providers must be one of: %v", policies))
	}

	if err := validateLoopback(c.Login.SSOListenAddress); err != nil {
		errs = append(errs, fmt.Errorf("login.sso_listen_address: %w", err))
	}

	if c.Sync.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must not be negative"))
	}
	if c.Sync.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("sync.max_attempts must be at least 1"))
	}
	if c.Sync.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("sync.initial_backoff must be positive"))
	}
	if c.Sync.MaxBackoff < c.Sync.InitialBackoff {
		errs = append(errs, fmt.Errorf("sync.max_backoff must be at least sync.initial_backoff"))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if c.UI.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("ui.frame_interval must be positive"))
	}
	themes := []Theme{ThemeAuto, ThemeDark, ThemeLight}
	if !slices.Contains(themes, c.UI.Theme) {
		errs = append(errs, fmt.Errorf("ui.theme must be one of: %v", themes))
	}

	return errors.Join(errs...)
}

func validateLoopback(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%q is not a loopback address", host)
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q (want debug, info, warn or error)", name)
	}
}

// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Homeserver != "matrix.org" {
		t.Errorf("expected homeserver=matrix.org, got %s", cfg.Homeserver)
	}
	if cfg.Login.DeviceDisplayName != "Dotmatrix" {
		t.Errorf("expected device_display_name=Dotmatrix, got %s", cfg.Login.DeviceDisplayName)
	}
	if cfg.Login.SSOProviders != SSOExpand {
		t.Errorf("expected sso_providers=expand, got %s", cfg.Login.SSOProviders)
	}
	if cfg.UI.FrameInterval != 50*time.Millisecond {
		t.Errorf("expected frame_interval=50ms, got %s", cfg.UI.FrameInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestResolve_DefaultWithoutPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Sync.MaxAttempts != 5 {
		t.Errorf("expected default max_attempts=5, got %d", cfg.Sync.MaxAttempts)
	}
}

func TestResolve_FlagWinsOverEnv(t *testing.T) {
	tmpDir := t.TempDir()
	flagPath := filepath.Join(tmpDir, "flag.yaml")
	envPath := filepath.Join(tmpDir, "env.yaml")
	writeFile(t, flagPath, "homeserver: flag.example\n")
	writeFile(t, envPath, "homeserver: env.example\n")
	t.Setenv(EnvConfigPath, envPath)

	cfg, err := Resolve(flagPath)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Homeserver != "flag.example" {
		t.Errorf("expected homeserver from flag file, got %s", cfg.Homeserver)
	}

	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Homeserver != "env.example" {
		t.Errorf("expected homeserver from env file, got %s", cfg.Homeserver)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dotmatrix.yaml")
	writeFile(t, configPath, `
homeserver: example.org
login:
  sso_providers: drop
  well_known: false
sync:
  timeout: 10s
  max_backoff: 1m
logging:
  level: debug
  file: ${HOME}/dotmatrix.log
ui:
  theme: light
`)
	t.Setenv("HOME", "/home/alice")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Homeserver != "example.org" {
		t.Errorf("expected homeserver=example.org, got %s", cfg.Homeserver)
	}
	if cfg.Login.SSOProviders != SSODrop {
		t.Errorf("expected sso_providers=drop, got %s", cfg.Login.SSOProviders)
	}
	if cfg.Login.WellKnown {
		t.Error("expected well_known=false")
	}
	if cfg.Sync.Timeout != 10*time.Second {
		t.Errorf("expected timeout=10s, got %s", cfg.Sync.Timeout)
	}
	if cfg.Sync.MaxBackoff != time.Minute {
		t.Errorf("expected max_backoff=1m, got %s", cfg.Sync.MaxBackoff)
	}
	// Unset keys keep their defaults.
	if cfg.Sync.InitialBackoff != time.Second {
		t.Errorf("expected initial_backoff default 1s, got %s", cfg.Sync.InitialBackoff)
	}
	if cfg.Login.DeviceDisplayName != "Dotmatrix" {
		t.Errorf("expected device_display_name default, got %s", cfg.Login.DeviceDisplayName)
	}
	if cfg.Logging.File != "/home/alice/dotmatrix.log" {
		t.Errorf("expected expanded log file, got %s", cfg.Logging.File)
	}
	if cfg.UI.Theme != ThemeLight {
		t.Errorf("expected theme=light, got %s", cfg.UI.Theme)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, configPath, "sync: [unclosed\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/dotmatrix",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/dotmatrix",
		},
		{
			input:    "${DOTMATRIX_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestExpandVariables_XDGStateFallback(t *testing.T) {
	t.Setenv("HOME", "/home/bob")
	t.Setenv("XDG_STATE_HOME", "")

	cfg := Default()
	cfg.Logging.File = "${XDG_STATE_HOME}/dotmatrix/log.json"
	cfg.expandVariables()

	if cfg.Logging.File != "/home/bob/.local/state/dotmatrix/log.json" {
		t.Errorf("unexpected expansion: %s", cfg.Logging.File)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			modify: func(*Config) {},
		},
		{
			name:    "unknown sso policy",
			modify:  func(c *Config) { c.Login.SSOProviders = "merge" },
			wantErr: "login.sso_providers",
		},
		{
			name:    "non-loopback listen address",
			modify:  func(c *Config) { c.Login.SSOListenAddress = "0.0.0.0:8080" },
			wantErr: "not a loopback address",
		},
		{
			name:   "localhost listen address",
			modify: func(c *Config) { c.Login.SSOListenAddress = "localhost:0" },
		},
		{
			name:    "zero attempts",
			modify:  func(c *Config) { c.Sync.MaxAttempts = 0 },
			wantErr: "sync.max_attempts",
		},
		{
			name:    "cap below initial backoff",
			modify:  func(c *Config) { c.Sync.MaxBackoff = 500 * time.Millisecond },
			wantErr: "sync.max_backoff",
		},
		{
			name:    "bad level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad theme",
			modify:  func(c *Config) { c.UI.Theme = "solarized" },
			wantErr: "ui.theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Sync.MaxAttempts = 0
	cfg.UI.FrameInterval = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"sync.max_attempts", "ui.frame_interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for input, want := range tests {
		got, err := ParseLevel(input)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) succeeded, want error")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

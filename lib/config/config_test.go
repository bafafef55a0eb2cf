// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	t.Setenv("HOME", "/home/user")
	cfg := Default()

	if cfg.Integration.BundleExtension != ".AppBox" {
		t.Errorf("bundle_extension = %q, want .AppBox", cfg.Integration.BundleExtension)
	}
	if cfg.Integration.ExtractArg != "--appimage-extract" {
		t.Errorf("extract_arg = %q, want --appimage-extract", cfg.Integration.ExtractArg)
	}
	if !cfg.Trust.Enabled {
		t.Error("trust should be enabled by default")
	}
	if !cfg.Notify.Enabled {
		t.Error("notifications should be enabled by default")
	}
	if cfg.Paths.BundleDir != "/home/user/.local/bin/apphub" {
		t.Errorf("bundle_dir = %q, want /home/user/.local/bin/apphub", cfg.Paths.BundleDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadRequiresAppHubConfig(t *testing.T) {
	t.Setenv("APPHUB_CONFIG", "")
	os.Unsetenv("APPHUB_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when APPHUB_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "APPHUB_CONFIG") {
		t.Errorf("error should mention APPHUB_CONFIG, got %q", err.Error())
	}
}

func TestLoadOrDefaultWithoutEnv(t *testing.T) {
	t.Setenv("APPHUB_CONFIG", "")
	os.Unsetenv("APPHUB_CONFIG")

	cfg, err := LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Integration.BundleExtension != ".AppBox" {
		t.Errorf("expected defaults, got bundle_extension=%q", cfg.Integration.BundleExtension)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "apphub.yaml")
	configContent := `
paths:
  bundle_dir: /custom/bundles
  alias_file: /custom/aliases

integration:
  bundle_extension: .AppPkg
  ready_timeout: 30s

trust:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.Paths.BundleDir != "/custom/bundles" {
		t.Errorf("bundle_dir = %q, want /custom/bundles", cfg.Paths.BundleDir)
	}
	if cfg.Paths.AliasFile != "/custom/aliases" {
		t.Errorf("alias_file = %q, want /custom/aliases", cfg.Paths.AliasFile)
	}
	if cfg.Integration.BundleExtension != ".AppPkg" {
		t.Errorf("bundle_extension = %q, want .AppPkg", cfg.Integration.BundleExtension)
	}
	if cfg.Integration.ReadyTimeout != "30s" {
		t.Errorf("ready_timeout = %q, want 30s", cfg.Integration.ReadyTimeout)
	}
	if cfg.Trust.Enabled {
		t.Error("trust.enabled = true, want false")
	}

	// Unset fields keep their defaults.
	if cfg.Integration.ExtractTimeout != "2m" {
		t.Errorf("extract_timeout = %q, want default 2m", cfg.Integration.ExtractTimeout)
	}
}

func TestLoadFileExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	configPath := filepath.Join(t.TempDir(), "apphub.yaml")
	configContent := `
paths:
  bundle_dir: ${HOME}/bundles
  alias_file: ${HOME}/.config/apphub/aliases
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Paths.BundleDir != "/home/tester/bundles" {
		t.Errorf("bundle_dir = %q, want /home/tester/bundles", cfg.Paths.BundleDir)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/apphub",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/apphub",
		},
		{
			input:    "${MISSING_VALUE_FOR_TEST:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
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

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty bundle dir",
			modify: func(c *Config) {
				c.Paths.BundleDir = ""
			},
			wantErr: true,
		},
		{
			name: "extension without dot",
			modify: func(c *Config) {
				c.Integration.BundleExtension = "AppBox"
			},
			wantErr: true,
		},
		{
			name: "malformed duration",
			modify: func(c *Config) {
				c.Integration.ReadyTimeout = "ninety seconds"
			},
			wantErr: true,
		},
		{
			name: "empty sweep interval is allowed",
			modify: func(c *Config) {
				c.Integration.SweepInterval = ""
			},
			wantErr: false,
		},
		{
			name: "trust enabled without manifest dir",
			modify: func(c *Config) {
				c.Trust.ManifestDir = ""
			},
			wantErr: true,
		},
		{
			name: "trust disabled without manifest dir",
			modify: func(c *Config) {
				c.Trust.Enabled = false
				c.Trust.ManifestDir = ""
			},
			wantErr: false,
		},
		{
			name: "log file with zero max size",
			modify: func(c *Config) {
				c.Logging.File = "/tmp/apphub.log"
				c.Logging.MaxSizeBytes = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	timeout, err := cfg.Integration.ReadyTimeoutDuration()
	if err != nil {
		t.Fatalf("ReadyTimeoutDuration() error: %v", err)
	}
	if timeout != 90*time.Second {
		t.Errorf("ready timeout = %v, want 90s", timeout)
	}

	interval, err := cfg.Integration.SweepIntervalDuration()
	if err != nil {
		t.Fatalf("SweepIntervalDuration() error: %v", err)
	}
	if interval != 0 {
		t.Errorf("sweep interval = %v, want 0 (disabled)", interval)
	}

	cfg.Integration.ExtractTimeout = "bogus"
	if _, err := cfg.Integration.ExtractTimeoutDuration(); err == nil {
		t.Error("expected error for malformed extract_timeout")
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.BundleDir = filepath.Join(tmpDir, "bundles")
	cfg.Paths.ApplicationsDir = filepath.Join(tmpDir, "applications")
	cfg.Paths.IconDir = filepath.Join(tmpDir, "icons", "apphub")
	cfg.Paths.AliasFile = filepath.Join(tmpDir, "config", "aliases")
	cfg.Trust.ManifestDir = filepath.Join(tmpDir, "manifests")
	cfg.Trust.MarkerDir = filepath.Join(tmpDir, "markers")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() error: %v", err)
	}

	for _, path := range []string{
		cfg.Paths.BundleDir,
		cfg.Paths.ApplicationsDir,
		cfg.Paths.IconDir,
		filepath.Dir(cfg.Paths.AliasFile),
		cfg.Trust.ManifestDir,
		cfg.Trust.MarkerDir,
	} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}

	// The alias file itself is created on demand, not here.
	if _, err := os.Stat(cfg.Paths.AliasFile); !os.IsNotExist(err) {
		t.Errorf("alias file should not be created by EnsurePaths")
	}
}

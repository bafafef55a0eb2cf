// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for AppHub.
type Config struct {
	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Integration configures the bundle integration engine.
	Integration IntegrationConfig `yaml:"integration"`

	// Trust configures bundle trust validation.
	Trust TrustConfig `yaml:"trust"`

	// Logging configures the daemon log destination.
	Logging LoggingConfig `yaml:"logging"`

	// Notify configures desktop notifications.
	Notify NotifyConfig `yaml:"notify"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// BundleDir is the watched directory where application bundles
	// are dropped. Non-recursive.
	BundleDir string `yaml:"bundle_dir"`

	// ApplicationsDir is where menu entry (.desktop) files are
	// installed. Shared with other writers; only entries carrying the
	// ownership marker are ever touched.
	ApplicationsDir string `yaml:"applications_dir"`

	// IconDir is the managed icon directory. Icons outside it are
	// never deleted.
	IconDir string `yaml:"icon_dir"`

	// AliasFile is the shared shell alias file. Created on demand.
	AliasFile string `yaml:"alias_file"`

	// ShellRC is the shell startup file that sources AliasFile.
	ShellRC string `yaml:"shell_rc"`

	// WorkspaceRoot is where per-integration extraction workspaces
	// are created. Empty means the system temporary directory.
	WorkspaceRoot string `yaml:"workspace_root"`
}

// IntegrationConfig configures the bundle integration engine.
type IntegrationConfig struct {
	// BundleExtension is the filename extension that identifies
	// bundles in the watched directory. Must start with a dot.
	// Default: .AppBox
	BundleExtension string `yaml:"bundle_extension"`

	// ExtractArg is the subcommand passed to a bundle to make it
	// self-extract into the working directory.
	// Default: --appimage-extract
	ExtractArg string `yaml:"extract_arg"`

	// ReadyTimeout bounds how long a freshly appeared bundle may take
	// to become stable and executable. Duration string. Default: 90s
	ReadyTimeout string `yaml:"ready_timeout"`

	// ReadyPollInterval is the delay between readiness probes.
	// Duration string. Default: 200ms
	ReadyPollInterval string `yaml:"ready_poll_interval"`

	// ExtractTimeout is the wall-clock ceiling for one self-extraction
	// attempt. Duration string. Default: 2m
	ExtractTimeout string `yaml:"extract_timeout"`

	// SweepInterval re-runs the reconciliation sweep periodically.
	// Duration string; empty or "0" disables the ticker (the sweep
	// still runs at startup and on SIGHUP). Default: disabled
	SweepInterval string `yaml:"sweep_interval"`
}

// TrustConfig configures bundle trust validation.
type TrustConfig struct {
	// Enabled turns manifest and marker checking on. The structural
	// checks (ELF magic, filename grammar) always run.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ManifestDir is searched recursively for build manifest YAML
	// documents. When Enabled, a missing directory fails validation
	// rather than waving bundles through.
	ManifestDir string `yaml:"manifest_dir"`

	// MarkerDir holds per-bundle build marker files named after the
	// bundle stem.
	MarkerDir string `yaml:"marker_dir"`
}

// LoggingConfig configures the daemon log destination.
type LoggingConfig struct {
	// File routes daemon logs to a size-rotated file instead of
	// stderr. Empty means stderr only.
	File string `yaml:"file"`

	// MaxSizeBytes triggers rotation when the log file exceeds it.
	// Default: 1048576 (1 MiB)
	MaxSizeBytes int64 `yaml:"max_size_bytes"`

	// MaxBackups bounds how many compressed rotated files are kept.
	// Default: 3
	MaxBackups int `yaml:"max_backups"`
}

// NotifyConfig configures desktop notifications.
type NotifyConfig struct {
	// Enabled sends desktop notifications for integration outcomes.
	// Notifications are best-effort; failures are logged and ignored.
	// Default: true
	Enabled bool `yaml:"enabled"`
}

// Default returns the stock single-user configuration. The config file
// is optional for the daemon: these defaults describe a conventional
// ~/.local installation.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Paths: PathsConfig{
			BundleDir:       filepath.Join(homeDir, ".local", "bin", "apphub"),
			ApplicationsDir: filepath.Join(homeDir, ".local", "share", "applications"),
			IconDir:         filepath.Join(homeDir, ".local", "share", "icons", "apphub"),
			AliasFile:       filepath.Join(homeDir, ".config", "apphub", "aliases"),
			ShellRC:         filepath.Join(homeDir, ".bashrc"),
			WorkspaceRoot:   "",
		},
		Integration: IntegrationConfig{
			BundleExtension:   ".AppBox",
			ExtractArg:        "--appimage-extract",
			ReadyTimeout:      "90s",
			ReadyPollInterval: "200ms",
			ExtractTimeout:    "2m",
			SweepInterval:     "",
		},
		Trust: TrustConfig{
			Enabled:     true,
			ManifestDir: filepath.Join(homeDir, ".config", "apphub", "manifests"),
			MarkerDir:   filepath.Join(homeDir, ".local", "state", "apphub", "markers"),
		},
		Logging: LoggingConfig{
			File:         "",
			MaxSizeBytes: 1 << 20,
			MaxBackups:   3,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from the APPHUB_CONFIG environment variable.
// Fails when the variable is unset; callers that treat the file as
// optional use LoadOrDefault.
func Load() (*Config, error) {
	configPath := os.Getenv("APPHUB_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("APPHUB_CONFIG environment variable not set; " +
			"set it to the path of your apphub.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadOrDefault loads configuration from APPHUB_CONFIG when set, and
// returns Default() otherwise. The daemon uses this so a stock
// installation needs no config file at all.
func LoadOrDefault() (*Config, error) {
	if os.Getenv("APPHUB_CONFIG") == "" {
		return Default(), nil
	}
	return Load()
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in all
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	for _, field := range []*string{
		&c.Paths.BundleDir,
		&c.Paths.ApplicationsDir,
		&c.Paths.IconDir,
		&c.Paths.AliasFile,
		&c.Paths.ShellRC,
		&c.Paths.WorkspaceRoot,
		&c.Trust.ManifestDir,
		&c.Trust.MarkerDir,
		&c.Logging.File,
	} {
		*field = expandVars(*field, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

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

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"paths.bundle_dir", c.Paths.BundleDir},
		{"paths.applications_dir", c.Paths.ApplicationsDir},
		{"paths.icon_dir", c.Paths.IconDir},
		{"paths.alias_file", c.Paths.AliasFile},
	}
	for _, field := range required {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", field.name))
		}
	}

	if !strings.HasPrefix(c.Integration.BundleExtension, ".") {
		errs = append(errs, fmt.Errorf("integration.bundle_extension must start with a dot, got %q",
			c.Integration.BundleExtension))
	}
	if c.Integration.ExtractArg == "" {
		errs = append(errs, fmt.Errorf("integration.extract_arg is required"))
	}

	durations := []struct {
		name     string
		value    string
		required bool
	}{
		{"integration.ready_timeout", c.Integration.ReadyTimeout, true},
		{"integration.ready_poll_interval", c.Integration.ReadyPollInterval, true},
		{"integration.extract_timeout", c.Integration.ExtractTimeout, true},
		{"integration.sweep_interval", c.Integration.SweepInterval, false},
	}
	for _, field := range durations {
		if field.value == "" {
			if field.required {
				errs = append(errs, fmt.Errorf("%s is required", field.name))
			}
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", field.name, field.value))
		}
	}

	if c.Trust.Enabled {
		if c.Trust.ManifestDir == "" {
			errs = append(errs, fmt.Errorf("trust.manifest_dir is required when trust is enabled"))
		}
		if c.Trust.MarkerDir == "" {
			errs = append(errs, fmt.Errorf("trust.marker_dir is required when trust is enabled"))
		}
	}

	if c.Logging.File != "" {
		if c.Logging.MaxSizeBytes <= 0 {
			errs = append(errs, fmt.Errorf("logging.max_size_bytes must be positive, got %d",
				c.Logging.MaxSizeBytes))
		}
		if c.Logging.MaxBackups < 0 {
			errs = append(errs, fmt.Errorf("logging.max_backups must be non-negative, got %d",
				c.Logging.MaxBackups))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// parseDuration parses a duration config field. Validate has already
// checked the field parses; a failure here is surfaced loudly at
// startup rather than papered over.
func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return parsed, nil
}

// ReadyTimeoutDuration returns the parsed readiness timeout.
func (c *IntegrationConfig) ReadyTimeoutDuration() (time.Duration, error) {
	return parseDuration("ready_timeout", c.ReadyTimeout)
}

// ReadyPollIntervalDuration returns the parsed readiness poll interval.
func (c *IntegrationConfig) ReadyPollIntervalDuration() (time.Duration, error) {
	return parseDuration("ready_poll_interval", c.ReadyPollInterval)
}

// ExtractTimeoutDuration returns the parsed extraction ceiling.
func (c *IntegrationConfig) ExtractTimeoutDuration() (time.Duration, error) {
	return parseDuration("extract_timeout", c.ExtractTimeout)
}

// SweepIntervalDuration returns the parsed sweep interval. Zero means
// the periodic sweep is disabled.
func (c *IntegrationConfig) SweepIntervalDuration() (time.Duration, error) {
	return parseDuration("sweep_interval", c.SweepInterval)
}

// EnsurePaths creates the directories the daemon owns. The shell rc
// and the applications directory's siblings are user-owned and never
// created here; the applications directory itself is, since a fresh
// account may lack it.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.BundleDir,
		c.Paths.ApplicationsDir,
		c.Paths.IconDir,
		filepath.Dir(c.Paths.AliasFile),
	}
	if c.Trust.Enabled {
		paths = append(paths, c.Trust.ManifestDir, c.Trust.MarkerDir)
	}
	if c.Paths.WorkspaceRoot != "" {
		paths = append(paths, c.Paths.WorkspaceRoot)
	}
	if c.Logging.File != "" {
		paths = append(paths, filepath.Dir(c.Logging.File))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

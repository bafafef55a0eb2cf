// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"

	"github.com/apphub-foundation/apphub/integrate"
	"github.com/apphub-foundation/apphub/lib/config"
	"github.com/apphub-foundation/apphub/lib/notify"
)

// loadConfig resolves configuration for one command invocation: an
// explicit --config path wins, then APPHUB_CONFIG, then the built-in
// single-user defaults. Identical resolution to the daemon.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newEngine builds an integration engine for a one-shot command.
// Desktop notifications are suppressed: the operator is reading the
// command's own output. Commands that write (integrate, remove,
// sweep) call cfg.EnsurePaths first; list stays read-only.
func newEngine(cfg *config.Config, logger *slog.Logger) (*integrate.Engine, error) {
	return integrate.New(integrate.Options{
		Config:   cfg,
		Logger:   logger,
		Notifier: notify.Discard{},
	})
}

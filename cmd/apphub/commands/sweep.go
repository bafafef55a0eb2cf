// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/apphub-foundation/apphub/cmd/apphub/cli"
)

func sweepCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "sweep",
		Summary: "Reconcile installed integrations with the bundle directory",
		Description: `Run one reconciliation pass: remove entries whose bundle is gone,
then integrate bundles that have no entry yet. This is the same pass
the daemon runs on its sweep interval.`,
		Usage: "apphub sweep [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the configuration file")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("sweep takes no arguments")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.EnsurePaths(); err != nil {
				return err
			}
			engine, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			stats, err := engine.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d stale, installed %d, %d failed\n",
				stats.StaleRemoved, stats.Installed, stats.Failures)
			if stats.Failures > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/apphub-foundation/apphub/cmd/apphub/cli"
)

func integrateCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "integrate",
		Summary: "Integrate one or more bundles now",
		Description: `Integrate the named bundle files immediately, without waiting for
the daemon to notice them. Bundles already integrated at the same
content are skipped.`,
		Usage: "apphub integrate [flags] <bundle>...",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("integrate", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the configuration file")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("integrate requires at least one bundle path")
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
			failed := 0
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					fmt.Printf("%s: %v\n", arg, err)
					failed++
					continue
				}
				if err := engine.Integrate(ctx, path); err != nil {
					fmt.Printf("%s: %v\n", arg, err)
					failed++
					continue
				}
				fmt.Printf("%s: integrated\n", arg)
			}
			if failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

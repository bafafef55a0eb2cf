// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/apphub-foundation/apphub/cmd/apphub/cli"
	"github.com/apphub-foundation/apphub/integrate"
)

func removeCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "remove",
		Summary: "Remove installed integrations",
		Description: `Remove the menu entry, icon, and shell alias for each argument.

An argument containing a path separator or the bundle extension is
treated as a bundle file path; anything else is treated as an
integration name as printed by "apphub list". The bundle file itself
is never deleted.`,
		Usage: "apphub remove [flags] <bundle|name>...",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("remove", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the configuration file")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("remove requires at least one bundle path or name")
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
				if err := removeOne(ctx, engine, cfg.Integration.BundleExtension, arg); err != nil {
					fmt.Printf("%s: %v\n", arg, err)
					failed++
					continue
				}
				fmt.Printf("%s: removed\n", arg)
			}
			if failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func removeOne(ctx context.Context, engine *integrate.Engine, ext, arg string) error {
	if bundlePathArg(ext, arg) {
		path, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		return engine.Remove(ctx, path)
	}
	return engine.RemoveName(ctx, arg)
}

// bundlePathArg reports whether arg names a bundle file rather than an
// installed integration name.
func bundlePathArg(ext, arg string) bool {
	return strings.ContainsRune(arg, filepath.Separator) || strings.EqualFold(filepath.Ext(arg), ext)
}

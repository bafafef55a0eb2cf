// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the apphub operator CLI command tree. Every
// command resolves configuration the same way the daemon does, so a
// one-shot "apphub integrate" and the running daemon agree on paths,
// trust policy, and naming.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apphub-foundation/apphub/cmd/apphub/cli"
	"github.com/apphub-foundation/apphub/lib/version"
)

// Root builds and returns the complete apphub CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "apphub",
		Description: `AppHub: AppBox bundle integration for the desktop.

Inspect and manage the menu entries, icons, and shell aliases that the
apphub daemon maintains for bundles in the watched directory.`,
		Subcommands: []*cli.Command{
			listCommand(),
			integrateCommand(),
			removeCommand(),
			sweepCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("apphub %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Show every installed integration and its bundle status",
				Command:     "apphub list",
			},
			{
				Description: "Integrate a bundle without waiting for the daemon",
				Command:     "apphub integrate ~/.local/bin/apphub/editor-2.1-x86_64.AppBox",
			},
			{
				Description: "Remove an integration by name",
				Command:     "apphub remove editor",
			},
			{
				Description: "Reconcile menu entries with the bundle directory",
				Command:     "apphub sweep",
			},
		},
	}
}

// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/apphub-foundation/apphub/cmd/apphub/cli"
	"github.com/apphub-foundation/apphub/integrate"
)

func listCommand() *cli.Command {
	var (
		configPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List installed integrations",
		Description: `List every menu entry AppHub has installed, together with the
bundle it points at and whether that bundle is still in place.

Status is one of:

  ok       bundle present and unchanged since integration
  changed  bundle present but its content digest no longer matches
  missing  bundle no longer exists (a sweep will remove the entry)
  unknown  bundle state could not be determined`,
		Usage: "apphub list [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the configuration file")
			flags.BoolVar(&asJSON, "json", false, "print records as JSON")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("list takes no arguments")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			records, err := engine.Records()
			if err != nil {
				return err
			}
			if asJSON {
				if records == nil {
					records = []integrate.InstalledRecord{}
				}
				return cli.WriteJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("no integrations installed")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tSTATUS\tBUNDLE")
			for _, rec := range records {
				kind := "app"
				if rec.CLI {
					kind = "cli"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Name, kind, rec.Status, rec.Bundle)
			}
			return tw.Flush()
		},
	}
}

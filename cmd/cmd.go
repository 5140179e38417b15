// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/formatter"
)

// syncCommand runs the full scrape, resolve and reconcile job
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync the radio playlist into the synced and archive playlists",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Compute changes without modifying any playlist",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Report format (%s)", strings.Join(formatter.Formats, ", ")),
				Value:   formatter.FormatText,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
		},
		Action: r.Sync,
	}
}

// scrapeCommand prints the current radio playlist
func scrapeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scrape",
		Usage: "Print the tracks currently on the radio playlist",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Scrape,
	}
}

// resolveCommand searches the catalog for a single mention
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve one artist and track name to a Spotify track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "artist",
				Aliases:  []string{"a"},
				Usage:    "Artist name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"t"},
				Usage:    "Track name",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

// historyCommand lists recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded sync runs or show one run",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to list (0 for all)",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Run id or sequence number to show",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// authCommand runs the one-time authorization flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize with Spotify and save the refresh token",
		Action: r.Auth,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "plsync",
		Usage:   "Sync M3U/M3U8 playlist files to Spotify",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output and show every resolved track",
			},
		},
		Commands: r.register(),
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Resolve playlist files against Spotify and write them as playlists",
		ArgsUsage: "[playlist files...]",
		Description: "Each file becomes a Spotify playlist named after the file. " +
			"Without --update a new playlist is always created, even when one with the same name " +
			"already exists; with --update only tracks missing from the existing playlist of the " +
			"same name are appended.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "update",
				Aliases: []string{"u"},
				Usage:   "Append new tracks to existing playlists instead of creating them",
			},
			&cli.BoolFlag{
				Name:  "continue-on-error",
				Usage: "Keep going when a file fails (overrides sync.on_error)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve and reconcile without creating or modifying playlists",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a resolution report per file into `DIR`",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: csv, markdown or txt",
				Value: formatter.FormatMarkdown,
			},
		},
		Action: r.Sync,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-sync playlist files in update mode whenever they change",
		ArgsUsage: "[playlist files...]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period after the last change before syncing",
				Value: 2 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "initial",
				Usage: "Sync every file once before watching",
			},
		},
		Action: r.Watch,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize plsync with Spotify and save the token to the config file",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file from the template and initialize the history database",
		Action: r.Setup,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show, 0 for all",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Only show runs for this playlist name",
			},
			&cli.StringFlag{
				Name:  "unresolved",
				Usage: "List the unresolved tracks of a run (ID, ID prefix or #sequence)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

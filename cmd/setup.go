package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and initializes the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("config") {
		r.configPath = cmd.String("config")
	}

	created := false
	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}
		created = true
	}

	if err := r.prepare(cmd); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	_, db, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	if created {
		r.printer.Successf("Config file created at %s", r.configPath)
	} else {
		r.printer.Successf("Using existing config file %s", r.configPath)
	}
	r.printer.Successf("History database ready at %s (schema v%d)", r.config.Database.Path, version)

	if r.config.Credentials.Spotify.Token() == nil {
		r.writePlain("\nNext steps:\n")
		r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s\n", r.configPath)
		r.writePlain("2. Add %s as a redirect URI of your Spotify app\n", redirectURI(r.config))
		r.writePlain("3. Run 'plsync auth'\n")
	}
	return nil
}

func redirectURI(c *shared.Config) string {
	if c.Credentials.Spotify.RedirectURI != "" {
		return c.Credentials.Spotify.RedirectURI
	}
	return fmt.Sprintf("http://%s:%d/callback", c.Server.Host, c.Server.Port)
}

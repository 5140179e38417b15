package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/ui"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if r.configPath == "" {
		return fmt.Errorf("%w: --config must name a file", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("%s\n", ui.Styles.OK("Config written to "+r.configPath))
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify.client_id and client_secret (or set %s and %s)\n", shared.EnvClientID, shared.EnvClientSecret)
	r.writePlain("2. Set playlists.synced and playlists.archive\n")
	r.writePlain("3. Run 'radiosync auth' to obtain a refresh token\n")
	return nil
}

// SetupDatabase initializes the history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.configuration().Database.Path
	if path == "" {
		return fmt.Errorf("%w: database.path (or %s) is not set", shared.ErrMissingConfig, shared.EnvDatabasePath)
	}

	r.logger.Info("initializing database", "path", path)

	db, err := shared.OpenHistory(path)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("%s\n", ui.Styles.OK("Database ready at "+path))
}

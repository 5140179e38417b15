package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
	"github.com/desertthunder/radiosync/internal/ui"
)

// Resolve runs the track resolver for one artist and name pair.
//
// A miss is reported, not returned as an error.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	mention := models.NewScrapedMention(cmd.String("artist"), cmd.String("name"))
	useJSON := cmd.Bool("json")

	key, err := models.IdentityFor(r.configuration().Sync.Identity)
	if err != nil {
		return err
	}

	catalog, err := r.catalogClient()
	if err != nil {
		return err
	}

	resolver := tasks.NewResolver(catalog, key, shared.WithLogger(r.logger, "component", "resolver"))
	track, err := resolver.Resolve(ctx, mention)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(track, true)
	}

	if track == nil {
		return r.writePlain("%s\n", ui.Styles.Err("No match for "+mention.String()))
	}

	r.writePlain("%s\n", ui.Styles.OK(track.Label()))
	r.writePlain("   ID: %s\n", track.ID)
	r.writePlain("   URI: %s\n", track.URI)
	if track.Album.Name != "" {
		r.writePlain("   Album: %s\n", track.Album.Name)
	}
	r.writePlain("   Artists: %s\n", strings.Join(track.ArtistNames(), ", "))
	r.writePlain("   Popularity: %d\n", track.Popularity)
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/ui"
)

// Scrape prints the mentions currently on the radio playlist page.
func (r *Runner) Scrape(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	r.logger.Info("scraping radio playlist", "url", r.configuration().Source.URL)

	mentions, err := r.mentionSource().Scrape(ctx)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(mentions, pretty)
	}

	if len(mentions) == 0 {
		return r.writePlain("%s\n", ui.Styles.Warn("The radio playlist is empty"))
	}

	r.writePlain("%s\n\n", ui.Styles.Title(fmt.Sprintf("Found %d mentions", len(mentions))))
	for i, m := range mentions {
		r.writePlain("%2d. %s\n", i+1, m)
	}
	return nil
}

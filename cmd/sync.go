package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/formatter"
	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
	"github.com/desertthunder/radiosync/internal/ui"
)

// Sync scrapes the radio playlist and reconciles the synced and archive playlists.
//
// Progress is printed while the run is in flight when the report is plain text or goes to a file.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")
	format := cmd.String("format")
	outputPath := cmd.String("output")

	if format == "md" {
		format = formatter.FormatMarkdown
	}
	if !slices.Contains(formatter.Formats, format) {
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	cfg := r.configuration()
	if err := cfg.Validate(); err != nil {
		return err
	}

	key, err := models.IdentityFor(cfg.Sync.Identity)
	if err != nil {
		return err
	}
	location, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	catalog, err := r.catalogClient()
	if err != nil {
		return err
	}

	history, closeHistory, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	opts := tasks.Options{
		Targets:  tasks.DefaultTargets(cfg.Playlists.Synced, cfg.Playlists.Archive),
		Key:      key,
		Location: location,
		DryRun:   dryRun,
		Logger:   shared.WithLogger(r.logger, "component", "sync"),
	}
	if history != nil {
		opts.Recorder = history
	}

	engine := tasks.NewPlaylistEngine(r.mentionSource(), catalog, opts)
	r.logger.Info("starting sync", "synced", cfg.Playlists.Synced, "archive", cfg.Playlists.Archive, "dry_run", dryRun)

	showProgress := format == formatter.FormatText || outputPath != ""
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if showProgress {
				r.printProgress(update)
			}
		}
	}()

	result, err := engine.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := formatter.WriteReport(result, format, outputPath); err != nil {
			return err
		}
		r.logger.Info("report written", "path", outputPath, "format", format)
		return r.writePlain("%s\n", ui.Styles.OK("Report written to "+outputPath))
	}

	if format == formatter.FormatText {
		title := "Sync Complete!"
		if dryRun {
			title = "Dry Run Complete (no playlists modified)"
		}
		r.writePlain("\n%s\n", ui.Styles.Header(title))
	}

	data, err := formatter.Render(result, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.PhaseScrape:
		r.writePlain("📻 %s\n", update.Message)
	case tasks.PhaseResolve:
		r.writePlain("   %s\n", update.Message)
	case tasks.PhaseFetchPlaylist:
		r.writePlain("\n📥 %s\n", update.Message)
	case tasks.PhaseReconcile:
		r.writePlain("🔍 %s\n", update.Message)
	case tasks.PhaseAddTracks, tasks.PhaseRemoveTracks:
		r.writePlain("📝 %s\n", update.Message)
	case tasks.PhaseUpdateDescription:
		r.writePlain("🕒 %s\n", update.Message)
	case tasks.PhaseDone:
		r.writePlain("\n%s\n", ui.Styles.OK(update.Message))
	}
}

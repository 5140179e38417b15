package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/repositories"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
	"github.com/desertthunder/radiosync/internal/ui"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// runDetail is the JSON shape of a single run.
type runDetail struct {
	Run     *repositories.Run           `json:"run"`
	Changes []repositories.ChangeRecord `json:"changes"`
	Misses  []repositories.MissRecord   `json:"misses"`
}

// History lists recorded runs, or shows the changes and misses of one run when --run is set.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	ref := cmd.String("run")
	useJSON := cmd.Bool("json")

	history, closeHistory, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	if history == nil {
		return fmt.Errorf("%w: database.path (or %s) must be set to record history", shared.ErrMissingConfig, shared.EnvDatabasePath)
	}

	if ref != "" {
		return r.showRun(ctx, history, ref, useJSON)
	}

	runs, err := history.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}

	r.writePlain("%s\n\n", ui.Styles.Title(fmt.Sprintf("%d runs", len(runs))))
	for _, run := range runs {
		r.writePlain("#%-4d %s  %-9s  +%d -%d  %d unresolved%s\n",
			run.Sequence, run.StartedAt.Local().Format(historyTimeLayout), run.Status, run.Added, run.Removed, run.Misses, dryRunTag(run.DryRun))
	}
	return nil
}

func (r *Runner) showRun(ctx context.Context, history *repositories.HistoryRepository, ref string, useJSON bool) error {
	run, err := history.GetRun(ctx, ref)
	if err != nil {
		return err
	}

	changes, err := history.Changes(ctx, run.ID)
	if err != nil {
		return err
	}

	misses, err := history.Misses(ctx, run.ID)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(runDetail{Run: run, Changes: changes, Misses: misses}, true)
	}

	r.writePlain("%s\n", ui.Styles.Header(fmt.Sprintf("Run #%d%s", run.Sequence, dryRunTag(run.DryRun))))
	r.writePlain("ID: %s\n", run.ID)
	r.writePlain("Status: %s\n", run.Status)
	r.writePlain("Started: %s\n", run.StartedAt.Local().Format(historyTimeLayout))
	if run.FinishedAt != nil {
		r.writePlain("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	r.writePlain("Mentions: %d  Resolved: %d  Unresolved: %d\n", run.Mentions, run.Resolved, run.Misses)
	if run.Error != "" {
		r.writePlain("%s\n", ui.Styles.Err(run.Error))
	}

	if len(changes) > 0 {
		r.writePlainln("Changes:")
		for _, c := range changes {
			line := fmt.Sprintf("[%s] %s - %s", c.Target, c.Artists, c.TrackName)
			if c.Action == tasks.ActionRemove {
				r.writePlain("  %s\n", ui.Styles.Removed(line))
			} else {
				r.writePlain("  %s\n", ui.Styles.Added(line))
			}
		}
	}

	if len(misses) > 0 {
		r.writePlainln("Unresolved:")
		for _, m := range misses {
			r.writePlain("  %s - %s\n", m.Artist, m.Name)
		}
	}
	return nil
}

func dryRunTag(dryRun bool) string {
	if dryRun {
		return " (dry run)"
	}
	return ""
}

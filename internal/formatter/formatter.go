// package formatter renders sync results as plain text, Markdown, CSV or JSON reports
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
)

// Report formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Formats lists every supported report format.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

const timeLayout = time.RFC3339

// ResultToCSV converts a SyncResult to CSV with one row per change: Run, Target, Playlist, Action, ID, URI, Name, Artists
func ResultToCSV(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Run", "Target", "Playlist", "Action", "ID", "URI", "Name", "Artists"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, target := range result.Targets {
		for _, change := range changes(target) {
			record := []string{
				result.RunID,
				target.Name,
				target.PlaylistID,
				string(change.action),
				change.track.ID,
				change.track.URI,
				change.track.Name,
				strings.Join(change.track.ArtistNames(), "; "),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ResultToMarkdown converts a SyncResult to a Markdown report
func ResultToMarkdown(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer

	title := "Sync report"
	if result.DryRun {
		title += " (dry run)"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Run**: `%s`\n", result.RunID))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", result.StartedAt.Format(timeLayout)))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", duration(result)))
	buf.WriteString(fmt.Sprintf("**Mentions**: %d, **Resolved**: %d, **Unresolved**: %d\n\n", result.Mentions, result.Resolved, len(result.Misses)))

	for _, target := range result.Targets {
		buf.WriteString(fmt.Sprintf("## %s: %s\n\n", target.Name, target.PlaylistName))
		buf.WriteString(fmt.Sprintf("**Playlist**: `%s` (%d tracks before sync)\n\n", target.PlaylistID, target.Existing))

		if len(target.Added)+len(target.Removed) == 0 {
			buf.WriteString("No changes.\n\n")
		} else {
			buf.WriteString("| Action | Track | Artists |\n|---|---|---|\n")
			for _, change := range changes(target) {
				buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", change.action, escapeCell(change.track.Name), escapeCell(strings.Join(change.track.ArtistNames(), ", "))))
			}
			buf.WriteString("\n")
		}

		if target.Description != "" {
			buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", target.Description))
		}
	}

	if len(result.Misses) > 0 {
		buf.WriteString("## Unresolved\n\n")
		for _, miss := range result.Misses {
			buf.WriteString(fmt.Sprintf("- %s - %s\n", miss.Artist, miss.Name))
		}
	}

	return buf.Bytes(), nil
}

// ResultToText converts a SyncResult to plain text format
func ResultToText(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Run: %s", result.RunID))
	if result.DryRun {
		buf.WriteString(" (dry run)")
	}
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("Started: %s (%s)\n", result.StartedAt.Format(timeLayout), duration(result)))
	buf.WriteString(fmt.Sprintf("Mentions: %d  Resolved: %d  Unresolved: %d\n", result.Mentions, result.Resolved, len(result.Misses)))

	for _, target := range result.Targets {
		buf.WriteString(fmt.Sprintf("\n[%s] %s (%s): %d existing, +%d -%d\n",
			target.Name, target.PlaylistName, target.PlaylistID, target.Existing, len(target.Added), len(target.Removed)))
		for _, change := range changes(target) {
			sign := "+"
			if change.action == tasks.ActionRemove {
				sign = "-"
			}
			buf.WriteString(fmt.Sprintf("  %s %s\n", sign, change.track.Label()))
		}
		if target.Description != "" {
			buf.WriteString(fmt.Sprintf("  Description: %s\n", target.Description))
		}
	}

	if len(result.Misses) > 0 {
		buf.WriteString("\nUnresolved:\n")
		for _, miss := range result.Misses {
			buf.WriteString(fmt.Sprintf("  %s\n", miss))
		}
	}

	return buf.Bytes(), nil
}

// ResultToJSON converts a SyncResult to indented JSON
func ResultToJSON(result *tasks.SyncResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// Render dispatches to the renderer for format.
func Render(result *tasks.SyncResult, format string) ([]byte, error) {
	switch format {
	case FormatText, "":
		return ResultToText(result)
	case FormatMarkdown, "md":
		return ResultToMarkdown(result)
	case FormatCSV:
		return ResultToCSV(result)
	case FormatJSON:
		return ResultToJSON(result)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteReport renders result and writes it to path.
func WriteReport(result *tasks.SyncResult, format, path string) error {
	data, err := Render(result, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

type change struct {
	action tasks.ChangeAction
	track  models.Track
}

func changes(target tasks.TargetResult) []change {
	out := make([]change, 0, len(target.Added)+len(target.Removed))
	for _, t := range target.Added {
		out = append(out, change{action: tasks.ActionAdd, track: t})
	}
	for _, t := range target.Removed {
		out = append(out, change{action: tasks.ActionRemove, track: t})
	}
	return out
}

func duration(result *tasks.SyncResult) time.Duration {
	if result.FinishedAt.IsZero() {
		return 0
	}
	return result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

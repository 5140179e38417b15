package tasks

import (
	"fmt"

	"github.com/desertthunder/radiosync/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	PhaseScrape Phase = iota
	PhaseResolve
	PhaseFetchPlaylist
	PhaseReconcile
	PhaseAddTracks
	PhaseRemoveTracks
	PhaseUpdateDescription
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseScrape:
		return "scrape"
	case PhaseResolve:
		return "resolve"
	case PhaseFetchPlaylist:
		return "fetch_playlist"
	case PhaseReconcile:
		return "reconcile"
	case PhaseAddTracks:
		return "add_tracks"
	case PhaseRemoveTracks:
		return "remove_tracks"
	case PhaseUpdateDescription:
		return "update_description"
	case PhaseDone:
		return "done"
	default:
		return ""
	}
}

func scrapeUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseScrape, Step: 1, Total: 1, Message: "Scraping radio playlist..."}
}

func scrapedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseScrape,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d mentions", count),
	}
}

func resolveUpdate(step, total int, mention models.ScrapedMention, track *models.Track) ProgressUpdate {
	if track == nil {
		return ProgressUpdate{
			Phase:   PhaseResolve,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s", step, total, mention),
			Data:    mention,
		}
	}
	return ProgressUpdate{
		Phase:   PhaseResolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, mention, track.Label()),
		Data:    track,
	}
}

func fetchPlaylistUpdate(step, total int, target Target) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching %s playlist (%s)...", target.Name, target.PlaylistID),
	}
}

func reconcileUpdate(step, total int, target Target, delta Delta) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseReconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s: %d to add, %d to remove", target.Name, len(delta.ToAdd), len(delta.ToRemove)),
		Data:    delta,
	}
}

func addTracksUpdate(step, total int, target Target, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseAddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Adding %d tracks to %s...", count, target.Name),
	}
}

func removeTracksUpdate(step, total int, target Target, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseRemoveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Removing %d tracks from %s...", count, target.Name),
	}
}

func descriptionUpdate(step, total int, target Target, description string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseUpdateDescription,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Updating %s description: %s", target.Name, description),
	}
}

func doneUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseDone,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Done: %d changes across %d playlists", result.Changes(), len(result.Targets)),
		Data:    result,
	}
}

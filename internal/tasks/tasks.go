// package tasks implements the radio playlist sync job.
//
// The core abstraction is SyncEngine, which scrapes, resolves, reconciles and applies changes to the target playlists.
// Runs emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
)

// Target names.
const (
	TargetSynced  = "synced"
	TargetArchive = "archive"
)

// Target is one managed playlist.
type Target struct {
	Name           string
	PlaylistID     string
	RemoveOutdated bool // Mirror the current list instead of only appending
}

// DefaultTargets returns the mirrored playlist followed by the append-only archive. Empty ids are left out.
func DefaultTargets(syncedID, archiveID string) []Target {
	targets := []Target{}
	if syncedID != "" {
		targets = append(targets, Target{Name: TargetSynced, PlaylistID: syncedID, RemoveOutdated: true})
	}
	if archiveID != "" {
		targets = append(targets, Target{Name: TargetArchive, PlaylistID: archiveID, RemoveOutdated: false})
	}
	return targets
}

// MentionSource produces the current radio playlist mentions.
type MentionSource interface {
	Scrape(ctx context.Context) ([]models.ScrapedMention, error)
}

// ChangeAction is the kind of playlist edit.
type ChangeAction string

const (
	ActionAdd    ChangeAction = "add"
	ActionRemove ChangeAction = "remove"
)

// Change is one applied playlist edit.
type Change struct {
	Target     string
	PlaylistID string
	Action     ChangeAction
	Track      models.Track
}

// Recorder persists run history. Errors are logged and never abort a run.
type Recorder interface {
	RecordRunStarted(ctx context.Context, runID string, startedAt time.Time, dryRun bool) error
	RecordMiss(ctx context.Context, runID string, mention models.ScrapedMention) error
	RecordChange(ctx context.Context, runID string, change Change) error
	RecordRunFinished(ctx context.Context, result *SyncResult, runErr error) error
}

// TargetResult is the outcome for one target playlist.
type TargetResult struct {
	Name               string         `json:"name"`
	PlaylistID         string         `json:"playlist_id"`
	PlaylistName       string         `json:"playlist_name"`
	Existing           int            `json:"existing"`
	Added              []models.Track `json:"added"`
	Removed            []models.Track `json:"removed"`
	Description        string         `json:"description"`
	DescriptionUpdated bool           `json:"description_updated"`
}

// SyncResult contains all data from a sync run.
type SyncResult struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	DryRun     bool                    `json:"dry_run"`
	Mentions   int                     `json:"mentions"` // Scraped mentions
	Resolved   int                     `json:"resolved"` // Distinct resolved tracks
	Misses     []models.ScrapedMention `json:"misses"`
	Targets    []TargetResult          `json:"targets"`
}

// Changes counts additions and removals across all targets.
func (r *SyncResult) Changes() int {
	n := 0
	for _, t := range r.Targets {
		n += len(t.Added) + len(t.Removed)
	}
	return n
}

// Options configures a [PlaylistEngine]. Zero values select the defaults.
type Options struct {
	Targets  []Target
	Key      models.KeyFunc
	Location *time.Location // Zone the description timestamp is rendered in
	DryRun   bool           // Compute deltas without writing to the catalog
	Recorder Recorder
	Logger   *log.Logger
	Now      func() time.Time
}

// SyncEngine runs the sync job.
type SyncEngine interface {
	// Run scrapes the radio playlist, resolves each mention and reconciles every target playlist.
	Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)
}

// PlaylistEngine implements SyncEngine against a [MentionSource] and a [services.Catalog].
type PlaylistEngine struct {
	source   MentionSource
	catalog  services.Catalog
	resolver *Resolver
	opts     Options
	logger   *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine.
func NewPlaylistEngine(source MentionSource, catalog services.Catalog, opts Options) *PlaylistEngine {
	if opts.Key == nil {
		opts.Key = models.ByID
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &PlaylistEngine{
		source:   source,
		catalog:  catalog,
		resolver: NewResolver(catalog, opts.Key, opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one sync pass. On error the partial result is returned alongside it.
func (e *PlaylistEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: mention source not initialized", shared.ErrServiceUnavailable)
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	result := &SyncResult{
		RunID:     shared.GenerateID(),
		StartedAt: e.opts.Now(),
		DryRun:    e.opts.DryRun,
		Misses:    []models.ScrapedMention{},
		Targets:   []TargetResult{},
	}
	logger := e.logger.With("run", result.RunID)

	e.record(logger, func(r Recorder) error {
		return r.RecordRunStarted(ctx, result.RunID, result.StartedAt, result.DryRun)
	})

	err := e.run(ctx, progress, result, logger)
	result.FinishedAt = e.opts.Now()

	e.record(logger, func(r Recorder) error {
		return r.RecordRunFinished(context.WithoutCancel(ctx), result, err)
	})

	if err != nil {
		logger.Error("sync failed", "error", err)
		return result, err
	}

	e.sendProgress(progress, doneUpdate(result))
	logger.Info("sync finished", "changes", result.Changes(), "misses", len(result.Misses), "dry_run", result.DryRun)
	return result, nil
}

func (e *PlaylistEngine) run(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger) error {
	e.sendProgress(progress, scrapeUpdate())
	mentions, err := e.source.Scrape(ctx)
	if err != nil {
		return err
	}
	result.Mentions = len(mentions)
	e.sendProgress(progress, scrapedUpdate(len(mentions)))

	if len(mentions) == 0 {
		logger.Warn("radio playlist is empty")
	}

	current, misses, err := e.resolver.resolveEach(ctx, mentions, func(i int, m models.ScrapedMention, t *models.Track) {
		e.sendProgress(progress, resolveUpdate(i+1, len(mentions), m, t))
	})
	if err != nil {
		return err
	}
	result.Resolved = current.Len()
	result.Misses = misses

	for _, miss := range misses {
		e.record(logger, func(r Recorder) error { return r.RecordMiss(ctx, result.RunID, miss) })
	}
	logger.Info("resolved mentions", "mentions", len(mentions), "tracks", current.Len(), "misses", len(misses))

	for i, target := range e.opts.Targets {
		tr, err := e.syncTarget(ctx, progress, i+1, target, current, result.RunID, logger.With("target", target.Name))
		if tr != nil {
			result.Targets = append(result.Targets, *tr)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// syncTarget reconciles one playlist: add, then remove, then stamp the description.
func (e *PlaylistEngine) syncTarget(
	ctx context.Context, progress chan<- ProgressUpdate, step int, target Target, current *models.TrackSet, runID string, logger *log.Logger,
) (*TargetResult, error) {
	total := len(e.opts.Targets)

	e.sendProgress(progress, fetchPlaylistUpdate(step, total, target))
	playlist, err := e.catalog.GetPlaylist(ctx, target.PlaylistID)
	if err != nil {
		return nil, err
	}

	existing := models.NewTrackSet(e.opts.Key, playlist.Tracks...)
	delta := Reconcile(current, existing, target.RemoveOutdated)
	e.sendProgress(progress, reconcileUpdate(step, total, target, delta))
	logger.Info("reconciled", "playlist", playlist.Name, "existing", existing.Len(), "add", len(delta.ToAdd), "remove", len(delta.ToRemove))

	tr := &TargetResult{
		Name:         target.Name,
		PlaylistID:   target.PlaylistID,
		PlaylistName: playlist.Name,
		Existing:     len(playlist.Tracks),
		Added:        []models.Track{},
		Removed:      []models.Track{},
		Description:  playlist.Description,
	}

	if e.opts.DryRun {
		tr.Added = delta.ToAdd
		tr.Removed = delta.ToRemove
		tr.Description = UpdatedDescription(playlist.Description, e.opts.Now().In(e.opts.Location))
		return tr, nil
	}

	if len(delta.ToAdd) > 0 {
		e.sendProgress(progress, addTracksUpdate(step, total, target, len(delta.ToAdd)))
		if err := e.catalog.AddTracks(ctx, target.PlaylistID, models.URIs(delta.ToAdd)); err != nil {
			return tr, err
		}
		tr.Added = delta.ToAdd
		e.recordChanges(ctx, logger, runID, target, ActionAdd, delta.ToAdd)
	}

	if len(delta.ToRemove) > 0 {
		uris := removalURIs(playlist.Tracks, delta.ToRemove, e.opts.Key)
		e.sendProgress(progress, removeTracksUpdate(step, total, target, len(uris)))
		if err := e.catalog.RemoveTracks(ctx, target.PlaylistID, uris); err != nil {
			return tr, err
		}
		tr.Removed = delta.ToRemove
		e.recordChanges(ctx, logger, runID, target, ActionRemove, delta.ToRemove)
	}

	description := UpdatedDescription(playlist.Description, e.opts.Now().In(e.opts.Location))
	e.sendProgress(progress, descriptionUpdate(step, total, target, description))
	if err := e.catalog.UpdatePlaylistDescription(ctx, target.PlaylistID, description); err != nil {
		return tr, err
	}
	tr.Description = description
	tr.DescriptionUpdated = true

	return tr, nil
}

func (e *PlaylistEngine) recordChanges(ctx context.Context, logger *log.Logger, runID string, target Target, action ChangeAction, tracks []models.Track) {
	for _, t := range tracks {
		logger.Debug(string(action), "track", t.Label(), "uri", t.URI)
		change := Change{Target: target.Name, PlaylistID: target.PlaylistID, Action: action, Track: t}
		e.record(logger, func(r Recorder) error { return r.RecordChange(ctx, runID, change) })
	}
}

// record runs fn against the recorder, if any, and logs its error.
func (e *PlaylistEngine) record(logger *log.Logger, fn func(Recorder) error) {
	if e.opts.Recorder == nil {
		return
	}
	if err := fn(e.opts.Recorder); err != nil {
		logger.Warn("failed to record history", "error", err)
	}
}

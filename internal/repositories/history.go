package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one row of sync_runs with its change counts.
type Run struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	DryRun     bool       `json:"dry_run"`
	Mentions   int        `json:"mentions"`
	Resolved   int        `json:"resolved"`
	Error      string     `json:"error,omitempty"`
	Added      int        `json:"added"`
	Removed    int        `json:"removed"`
	Misses     int        `json:"misses"`
}

// ChangeRecord is one recorded playlist edit.
type ChangeRecord struct {
	ID         string             `json:"id"`
	RunID      string             `json:"run_id"`
	Target     string             `json:"target"`
	PlaylistID string             `json:"playlist_id"`
	Action     tasks.ChangeAction `json:"action"`
	TrackID    string             `json:"track_id"`
	TrackURI   string             `json:"track_uri"`
	TrackName  string             `json:"track_name"`
	Artists    string             `json:"artists"`
	CreatedAt  time.Time          `json:"created_at"`
}

// MissRecord is one recorded unresolved mention.
type MissRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Artist    string    `json:"artist"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository records sync runs and implements [tasks.Recorder].
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ tasks.Recorder = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

// RecordRunStarted inserts a running row with the next sequence number.
func (r *HistoryRepository) RecordRunStarted(ctx context.Context, runID string, startedAt time.Time, dryRun bool) error {
	query := `
		INSERT INTO sync_runs (id, sequence, started_at, status, dry_run)
		VALUES (?, ?, ?, ?, ?)
	`

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(ctx, tx, "sync_runs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, runID, sequence, startedAt.UTC(), RunRunning, dryRun); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	})
}

// RecordMiss stores an unresolved mention.
func (r *HistoryRepository) RecordMiss(ctx context.Context, runID string, mention models.ScrapedMention) error {
	query := `
		INSERT INTO unresolved_mentions (id, run_id, artist, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, shared.GenerateID(), runID, mention.Artist, mention.Name, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to insert miss: %w", err)
	}
	return nil
}

// RecordChange stores an applied playlist edit.
func (r *HistoryRepository) RecordChange(ctx context.Context, runID string, change tasks.Change) error {
	query := `
		INSERT INTO playlist_changes (id, run_id, target, playlist_id, action, track_id, track_uri, track_name, artists, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		runID,
		change.Target,
		change.PlaylistID,
		string(change.Action),
		change.Track.ID,
		change.Track.URI,
		change.Track.Name,
		strings.Join(change.Track.ArtistNames(), ", "),
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert change: %w", err)
	}
	return nil
}

// RecordRunFinished closes a run with its counters and outcome.
func (r *HistoryRepository) RecordRunFinished(ctx context.Context, result *tasks.SyncResult, runErr error) error {
	status, message := RunSucceeded, ""
	if runErr != nil {
		status, message = RunFailed, runErr.Error()
	}

	query := `
		UPDATE sync_runs
		SET finished_at = ?, status = ?, mentions = ?, resolved = ?, error = ?
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query, result.FinishedAt.UTC(), status, result.Mentions, result.Resolved, message, result.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, result.RunID)
	}
	return nil
}

const runColumns = `
	r.id, r.sequence, r.started_at, r.finished_at, r.status, r.dry_run, r.mentions, r.resolved, r.error,
	(SELECT COUNT(*) FROM playlist_changes c WHERE c.run_id = r.id AND c.action = 'add'),
	(SELECT COUNT(*) FROM playlist_changes c WHERE c.run_id = r.id AND c.action = 'remove'),
	(SELECT COUNT(*) FROM unresolved_mentions m WHERE m.run_id = r.id)
`

// ListRuns returns the most recent runs first. A limit of zero or less returns every run.
func (r *HistoryRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs r ORDER BY r.sequence DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun looks a run up by id or by sequence number.
func (r *HistoryRepository) GetRun(ctx context.Context, ref string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs r WHERE r.id = ?`
	arg := any(ref)
	if seq, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		query = `SELECT ` + runColumns + ` FROM sync_runs r WHERE r.sequence = ?`
		arg = seq
	}

	run, err := scanRun(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, ref)
	}
	return run, err
}

// Changes returns the changes recorded for a run in the order they were applied.
func (r *HistoryRepository) Changes(ctx context.Context, runID string) ([]ChangeRecord, error) {
	query := `
		SELECT id, run_id, target, playlist_id, action, track_id, track_uri, track_name, artists, created_at
		FROM playlist_changes
		WHERE run_id = ?
		ORDER BY rowid
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	changes := []ChangeRecord{}
	for rows.Next() {
		var c ChangeRecord
		var action string
		if err := rows.Scan(&c.ID, &c.RunID, &c.Target, &c.PlaylistID, &action, &c.TrackID, &c.TrackURI, &c.TrackName, &c.Artists, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Action = tasks.ChangeAction(action)
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}
	return changes, nil
}

// Misses returns the unresolved mentions recorded for a run.
func (r *HistoryRepository) Misses(ctx context.Context, runID string) ([]MissRecord, error) {
	query := `
		SELECT id, run_id, artist, name, created_at
		FROM unresolved_mentions
		WHERE run_id = ?
		ORDER BY rowid
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query misses: %w", err)
	}
	defer rows.Close()

	misses := []MissRecord{}
	for rows.Next() {
		var m MissRecord
		if err := rows.Scan(&m.ID, &m.RunID, &m.Artist, &m.Name, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan miss: %w", err)
		}
		misses = append(misses, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating misses: %w", err)
	}
	return misses, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var finishedAt sql.NullTime
	var status string

	err := s.Scan(
		&run.ID, &run.Sequence, &run.StartedAt, &finishedAt, &status, &run.DryRun,
		&run.Mentions, &run.Resolved, &run.Error, &run.Added, &run.Removed, &run.Misses,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// Package repositories implements SQLite persistence for sync run history.
//
// [HistoryRepository] implements [tasks.Recorder]: the sync engine reports each run's start and finish,
// every playlist change it applied and every radio mention it could not resolve. The CLI reads the same
// tables back through [HistoryRepository.ListRuns], [HistoryRepository.Changes] and [HistoryRepository.Misses].
//
// Tables:
//   - sync_runs : one row per run with status, counters and the error text of a failed run
//   - playlist_changes : tracks added to or removed from a target playlist
//   - unresolved_mentions : mentions with no catalog match
//
// Runs get a sequence number from [NextSequence], which atomically increments a counter in the
// sync_runs_sequence table, so a run can be referred to as "#42" instead of by UUID.
package repositories

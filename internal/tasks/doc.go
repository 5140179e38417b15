// Package tasks runs the radio playlist sync job with real-time progress reporting.
//
// # Pipeline
//
// [PlaylistEngine.Run] performs one pass:
//
//  1. Scrape the radio playlist page into mentions ([MentionSource])
//  2. Resolve each mention to a catalog track ([Resolver])
//     - Search "artist:<artist> track:<name>"
//     - On no results, retry with special characters stripped
//     - Pick the most popular candidate, ties broken by id
//  3. For each [Target] in order, read the playlist and [Reconcile] it against the resolved set
//  4. Add, then remove (mirrored targets only), then stamp the description with [UpdatedDescription]
//
// Misses are logged and skipped. Any catalog error aborts the run; rerunning converges because
// the delta is always recomputed from a fresh playlist read.
//
// # Identity
//
// Set membership uses a [models.KeyFunc] supplied in [Options]. The default compares catalog ids.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [Recorder] interface receives run start and finish, every applied change and every miss.
// Recorder errors are logged and ignored so history never disrupts a sync.
package tasks

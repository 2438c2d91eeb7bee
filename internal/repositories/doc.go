// Package repositories implements SQLite persistence for sync history.
//
// [RunRepository] stores one row per processed playlist file with its totals and status,
// plus the names of tracks that could not be resolved. The history is an audit log: nothing
// in it is read back while resolving tracks.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

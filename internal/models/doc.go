// Package models defines domain entities and persistence interfaces for plsync.
//
// The package contains two categories of types:
//
// 1. Sync values: short-lived structs produced and discarded within one run
//   - [TrackDescriptor] : Track entry read from a local playlist file
//   - [ResolutionResult] : Outcome of resolving one descriptor against the catalog
//   - [PlaylistTarget] : Remote playlist a file is written to, with its [Mode]
//   - [ReconciliationPlan] : Final ordered list of track IDs to write
//
// 2. Persistent Entities: Database-backed models
//   - [SyncRun] : One processed playlist file, kept as an audit log of past runs
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard data access operations.
package models

// Package tasks syncs local playlist files to Spotify with real-time progress reporting.
//
// # Pipeline
//
// [PlaylistEngine] processes each file through the same steps:
//
//  1. Read the file into track descriptors ([PlaylistReader])
//  2. Resolve every descriptor with one catalog search ([Resolver])
//     - The top result is taken as-is
//     - Zero candidates leave the track unresolved and resolution continues
//  3. Create a playlist named after the file, or in update mode locate the existing one ([FindPlaylistByName])
//  4. In update mode drop IDs the playlist already holds ([ExistingTrackIDs], [Reconcile])
//  5. Write the IDs in batches of 100
//  6. Stamp the description with the sync time (failures only warn)
//
// # Failure handling
//
// Failures are returned as [*StageError] naming the step that failed. [SyncAll] stops at the first
// failed file unless [ContinueOnError] is set. Authentication failures always stop the batch.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
//
// # Run history
//
// The optional [RunRecorder] receives one [models.SyncRun] per file. Recorder errors are logged and ignored.
package tasks

package models

import (
	"fmt"
	"time"
)

// RunStatus is the terminal state of a [SyncRun].
type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunFailed RunStatus = "failed"
	RunDryRun RunStatus = "dry_run"
)

// SyncRun records the processing of one playlist file.
//
// Runs form an audit log; nothing stored here is consulted when resolving tracks.
type SyncRun struct {
	id           string
	sequence     int
	playlistName string
	playlistID   string
	sourcePath   string
	mode         Mode
	tracksTotal  int
	resolved     int
	unresolved   []string
	written      int
	status       RunStatus
	errorMessage string
	startedAt    time.Time
	finishedAt   time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewSyncRun creates a [SyncRun] for the given source file and playlist name.
func NewSyncRun(sourcePath, playlistName string, mode Mode) *SyncRun {
	now := time.Now()
	return &SyncRun{
		sourcePath:   sourcePath,
		playlistName: playlistName,
		mode:         mode,
		startedAt:    now,
		createdAt:    now,
		updatedAt:    now,
	}
}

// RestoreSyncRun rebuilds a [SyncRun] from stored columns.
func RestoreSyncRun(
	id string, sequence int, playlistName, playlistID, sourcePath string, mode Mode,
	total, resolved, written int, status RunStatus, errorMessage string,
	startedAt, finishedAt, createdAt, updatedAt time.Time,
) *SyncRun {
	return &SyncRun{
		id:           id,
		sequence:     sequence,
		playlistName: playlistName,
		playlistID:   playlistID,
		sourcePath:   sourcePath,
		mode:         mode,
		tracksTotal:  total,
		resolved:     resolved,
		written:      written,
		status:       status,
		errorMessage: errorMessage,
		startedAt:    startedAt,
		finishedAt:   finishedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (r *SyncRun) ID() string { return r.id }
func (r *SyncRun) Sequence() int { return r.sequence }
func (r *SyncRun) PlaylistName() string { return r.playlistName }
func (r *SyncRun) PlaylistID() string { return r.playlistID }
func (r *SyncRun) SourcePath() string { return r.sourcePath }
func (r *SyncRun) Mode() Mode { return r.mode }
func (r *SyncRun) TracksTotal() int { return r.tracksTotal }
func (r *SyncRun) Resolved() int { return r.resolved }
func (r *SyncRun) Unresolved() []string { return r.unresolved }
func (r *SyncRun) Written() int { return r.written }
func (r *SyncRun) Status() RunStatus { return r.status }
func (r *SyncRun) ErrorMessage() string { return r.errorMessage }
func (r *SyncRun) StartedAt() time.Time { return r.startedAt }
func (r *SyncRun) FinishedAt() time.Time { return r.finishedAt }
func (r *SyncRun) CreatedAt() time.Time { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time { return r.updatedAt }
func (r *SyncRun) SetID(id string) { r.id = id }
func (r *SyncRun) SetSequence(seq int) { r.sequence = seq }
func (r *SyncRun) SetPlaylistID(id string) { r.playlistID = id }

// SetUnresolved replaces the stored list of unresolved track names.
func (r *SyncRun) SetUnresolved(names []string) { r.unresolved = names }

// Record copies resolution totals from a finished resolution pass.
func (r *SyncRun) Record(results []ResolutionResult) {
	r.tracksTotal = len(results)
	r.resolved = 0
	r.unresolved = nil
	for _, res := range results {
		if res.Resolved() {
			r.resolved++
		} else {
			r.unresolved = append(r.unresolved, res.Descriptor.Name)
		}
	}
}

// Finish marks the run complete with the number of written tracks and an optional error.
func (r *SyncRun) Finish(written int, status RunStatus, err error) {
	r.written = written
	r.status = status
	if err != nil {
		r.errorMessage = err.Error()
	}
	r.finishedAt = time.Now()
	r.updatedAt = r.finishedAt
}

// Validate checks required fields.
func (r *SyncRun) Validate() error {
	if r.playlistName == "" {
		return fmt.Errorf("playlist name is required")
	}
	if r.sourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	switch r.status {
	case RunOK, RunFailed, RunDryRun:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	return nil
}

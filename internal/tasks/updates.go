package tasks

import (
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Path    string // Playlist file being processed
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ReadFile Phase = iota
	ResolveTracks
	LocatePlaylist
	CreatePlaylist
	ReconcileTracks
	WriteTracks
	UpdateDescription
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case ReadFile:
		return "read_file"
	case ResolveTracks:
		return "resolve_tracks"
	case LocatePlaylist:
		return "locate_playlist"
	case CreatePlaylist:
		return "create_playlist"
	case ReconcileTracks:
		return "reconcile_tracks"
	case WriteTracks:
		return "write_tracks"
	case UpdateDescription:
		return "update_description"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func readFileUpdate(path string, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadFile,
		Path:    path,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reading %s...", step, total, path),
	}
}

func resolveUpdate(path string, step, total int, res *models.ResolutionResult) ProgressUpdate {
	if res == nil {
		return ProgressUpdate{
			Phase:   ResolveTracks,
			Path:    path,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("Searching Spotify for %d tracks...", total),
		}
	}

	mark := "✓"
	if !res.Resolved() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Path:    path,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, res.Descriptor.Name),
		Data:    *res,
	}
}

func locateUpdate(path, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LocatePlaylist,
		Path:    path,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up playlist %q...", name),
	}
}

func createUpdate(path string, target models.PlaylistTarget) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Path:    path,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", target.Name, target.ID),
		Data:    target,
	}
}

func reconcileUpdate(path string, plan *models.ReconciliationPlan) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcileTracks,
		Path:    path,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d tracks to write, %d already present", len(plan.IDs), plan.Skipped),
		Data:    plan,
	}
}

func writeUpdate(path string, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Path:    path,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Writing batch %d/%d...", step, total),
	}
}

func descriptionUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UpdateDescription,
		Path:    path,
		Step:    1,
		Total:   1,
		Message: "Updating playlist description...",
	}
}

func doneUpdate(path string, res *FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Path:    path,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %s: %d written, %d unresolved", res.Target.Name, res.Written, len(Unresolved(res.Results))),
		Data:    res,
	}
}

func failedUpdate(path string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Path:    path,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✗ %s: %v", path, err),
	}
}

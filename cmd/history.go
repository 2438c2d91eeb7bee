package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// runView is the JSON form of a [models.SyncRun].
type runView struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Playlist    string     `json:"playlist"`
	PlaylistID  string     `json:"playlist_id,omitempty"`
	SourcePath  string     `json:"source_path"`
	Mode        string     `json:"mode"`
	TracksTotal int        `json:"tracks_total"`
	Resolved    int        `json:"resolved"`
	Written     int        `json:"written"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Unresolved  []string   `json:"unresolved,omitempty"`
}

func newRunView(run *models.SyncRun) runView {
	v := runView{
		ID:          run.ID(),
		Sequence:    run.Sequence(),
		Playlist:    run.PlaylistName(),
		PlaylistID:  run.PlaylistID(),
		SourcePath:  run.SourcePath(),
		Mode:        run.Mode().String(),
		TracksTotal: run.TracksTotal(),
		Resolved:    run.Resolved(),
		Written:     run.Written(),
		Status:      string(run.Status()),
		Error:       run.ErrorMessage(),
		StartedAt:   run.StartedAt(),
		Unresolved:  run.Unresolved(),
	}
	if finished := run.FinishedAt(); !finished.IsZero() {
		v.FinishedAt = &finished
	}
	return v
}

// History lists recorded sync runs, or the unresolved tracks of one run.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(cmd); err != nil {
		return err
	}

	repo, closer, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closer.Close()

	if ref := cmd.String("unresolved"); ref != "" {
		return r.showUnresolved(ctx, repo, ref, cmd.Bool("json"))
	}

	var runs []*models.SyncRun
	if name := cmd.String("playlist"); name != "" {
		runs, err = repo.ListByPlaylist(ctx, name, cmd.Int("limit"))
	} else {
		runs, err = repo.List(ctx, cmd.Int("limit"))
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = newRunView(run)
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded yet.\n")
	}
	return r.writePlain("%s\n", ui.RunTable(runs))
}

func (r *Runner) showUnresolved(ctx context.Context, repo *repositories.RunRepository, ref string, asJSON bool) error {
	run, err := findRun(ctx, repo, ref)
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(newRunView(run), true)
	}

	r.printer.Header(fmt.Sprintf("Run #%d: %s (%s)", run.Sequence(), run.PlaylistName(), run.SourcePath()))
	if len(run.Unresolved()) == 0 {
		return r.writePlain("Every track was resolved.\n")
	}
	for i, name := range run.Unresolved() {
		r.writePlain("%d. %s\n", i+1, name)
	}
	return nil
}

// findRun looks a run up by full ID, sequence number ("7" or "#7") or unique ID prefix.
// Sequence numbers win over ID prefixes.
func findRun(ctx context.Context, repo *repositories.RunRepository, ref string) (*models.SyncRun, error) {
	run, err := repo.Get(ctx, ref)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, repositories.ErrRunNotFound) {
		return nil, err
	}

	runs, err := repo.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	var matches []*models.SyncRun
	if seq, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		for _, candidate := range runs {
			if candidate.Sequence() == seq {
				matches = append(matches, candidate)
			}
		}
	}
	if len(matches) == 0 {
		for _, candidate := range runs {
			if strings.HasPrefix(candidate.ID(), ref) {
				matches = append(matches, candidate)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", repositories.ErrRunNotFound, ref)
	case 1:
		return repo.Get(ctx, matches[0].ID())
	default:
		return nil, fmt.Errorf("run reference %q is ambiguous (%d matches)", ref, len(matches))
	}
}

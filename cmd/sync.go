package main

import (
	"context"
	"time"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync resolves every playlist file and writes it to Spotify.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(cmd); err != nil {
		return err
	}

	paths, err := r.playlistPaths(cmd)
	if err != nil {
		return err
	}

	mode := models.ModeCreate
	if cmd.Bool("update") {
		mode = models.ModeUpdate
	}

	onError := r.config.Sync.OnError
	if cmd.Bool("continue-on-error") {
		onError = shared.PolicyContinue
	}
	policy, err := tasks.ParseFailurePolicy(onError)
	if err != nil {
		return err
	}

	reportDir := cmd.String("report")
	format := cmd.String("format")
	if reportDir != "" {
		if format, err = formatter.ParseFormat(format); err != nil {
			return err
		}
	}

	dryRun := cmd.Bool("dry-run")
	unlock, err := r.lock(dryRun)
	if err != nil {
		return err
	}
	defer unlock()

	engine, cleanup, err := r.newEngine(ctx, r.engineOptions(policy, dryRun))
	if err != nil {
		return err
	}
	defer cleanup()

	r.logger.Info("starting sync", "files", len(paths), "mode", mode, "dry_run", dryRun)

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := r.drainProgress(progress)
	result, err := engine.SyncAll(ctx, paths, mode, progress)
	close(progress)
	<-printed

	if result != nil {
		for _, fr := range result.Files {
			r.printer.FileResult(fr, dryRun)
			if reportDir != "" && len(fr.Results) > 0 {
				r.writeReport(fr, mode, reportDir, format)
			}
		}
		r.printer.Summary(result)
	}

	return err
}

// writeReport writes the resolution report of one file. Failures only warn.
func (r *Runner) writeReport(fr tasks.FileResult, mode models.Mode, dir, format string) {
	report := &formatter.Report{
		Playlist:    fr.Target.Name,
		PlaylistID:  fr.Target.ID,
		SourcePath:  fr.Path,
		Mode:        mode,
		Results:     fr.Results,
		Written:     fr.Written,
		GeneratedAt: time.Now(),
	}
	if report.Playlist == "" {
		report.Playlist = shared.PlaylistName(fr.Path)
	}
	if fr.Plan != nil {
		report.Skipped = fr.Plan.Skipped
	}

	path, err := formatter.WriteReport(report, dir, format)
	if err != nil {
		r.logger.Warn("report not written", "file", fr.Path, "error", err)
		return
	}
	r.printer.Hintf("  report: %s", path)
}

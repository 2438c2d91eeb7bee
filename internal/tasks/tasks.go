// package tasks implements the playlist file to Spotify sync pipeline.
//
// The core abstraction is PlaylistEngine, which reads, resolves, reconciles and writes one file at a time.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// DescriptionPrefix starts the description written to every synced playlist.
const DescriptionPrefix = "Auto-generated playlist updated on "

const descriptionLayout = "2006-01-02 15:04:05"

// Stage names the step of the per-file pipeline that failed.
type Stage string

const (
	StageAuthenticate Stage = "authenticate"
	StageRead         Stage = "read"
	StageResolve      Stage = "resolve"
	StageLocate       Stage = "locate_playlist"
	StageCreate       Stage = "create_playlist"
	StageWrite        Stage = "write_tracks"
)

// StageError ties a failure to the file and pipeline step it happened in.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailurePolicy decides what a batch does after a file fails.
type FailurePolicy int

const (
	// AbortOnError stops the batch at the first failed file.
	AbortOnError FailurePolicy = iota
	// ContinueOnError skips the failed file and processes the rest.
	ContinueOnError
)

// ParseFailurePolicy converts "abort" or "continue" into a [FailurePolicy]. Empty means abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", shared.PolicyAbort:
		return AbortOnError, nil
	case shared.PolicyContinue:
		return ContinueOnError, nil
	default:
		return AbortOnError, fmt.Errorf("%w: unknown failure policy %q", shared.ErrInvalidArgument, s)
	}
}

// PlaylistReader loads the track descriptors of a playlist file.
type PlaylistReader interface {
	Read(ctx context.Context, path string) ([]models.TrackDescriptor, error)
}

// RunRecorder persists a finished [models.SyncRun]. Failures are logged and otherwise ignored.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.SyncRun) error
}

// Options configures a [PlaylistEngine].
type Options struct {
	Market      string
	Public      bool
	Policy      FailurePolicy
	DryRun      bool
	PageSize    int     // Playlist listing page size for name lookup
	Concurrency int     // Searches in flight
	RateLimit   float64 // Searches per second, 0 disables throttling
}

// FileResult is the outcome of syncing one playlist file.
type FileResult struct {
	Path           string
	Target         models.PlaylistTarget
	Results        []models.ResolutionResult
	Plan           *models.ReconciliationPlan
	Written        int
	DescriptionErr error // Non-fatal
	Err            error
	Run            *models.SyncRun
}

// SyncResult aggregates the files processed by [PlaylistEngine.SyncAll].
type SyncResult struct {
	Files     []FileResult
	Succeeded int
	Failed    int
}

// PlaylistEngine syncs local playlist files to Spotify playlists.
type PlaylistEngine struct {
	reader   PlaylistReader
	resolver *Resolver
	provider services.PlaylistProvider
	recorder RunRecorder
	logger   *log.Logger
	opts     Options
	now      func() time.Time
	ownerID  string
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided collaborators.
func NewPlaylistEngine(reader PlaylistReader, catalog services.Catalog, provider services.PlaylistProvider, opts Options) *PlaylistEngine {
	return &PlaylistEngine{
		reader: reader,
		resolver: NewResolver(catalog, opts.Market,
			WithConcurrency(opts.Concurrency),
			WithRateLimit(opts.RateLimit),
		),
		provider: provider,
		logger:   log.New(io.Discard),
		opts:     opts,
		now:      time.Now,
	}
}

// SetRecorder attaches a run history recorder.
func (e *PlaylistEngine) SetRecorder(r RunRecorder) { e.recorder = r }

// SetLogger replaces the engine's logger.
func (e *PlaylistEngine) SetLogger(l *log.Logger) {
	if l != nil {
		e.logger = l
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// authenticate fetches and caches the owner ID used for every write in the run.
func (e *PlaylistEngine) authenticate(ctx context.Context) (string, error) {
	if e.ownerID != "" {
		return e.ownerID, nil
	}
	if e.provider == nil {
		return "", fmt.Errorf("%w: playlist provider not initialized", shared.ErrServiceUnavailable)
	}

	id, err := e.provider.CurrentUserID(ctx)
	if err != nil {
		return "", &StageError{Stage: StageAuthenticate, Err: fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)}
	}
	e.ownerID = id
	return id, nil
}

// SyncAll syncs every path in order under the configured [FailurePolicy].
//
// Authentication failures always stop the batch. With [ContinueOnError] the returned error joins every file failure.
func (e *PlaylistEngine) SyncAll(ctx context.Context, paths []string, mode models.Mode, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no playlist files given", shared.ErrMissingArgument)
	}

	owner, err := e.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Files: make([]FileResult, 0, len(paths))}
	var errs []error

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e.sendProgress(progress, readFileUpdate(path, i+1, len(paths)))
		fr := e.syncFile(ctx, owner, path, mode, progress)
		result.Files = append(result.Files, *fr)

		if fr.Err == nil {
			result.Succeeded++
			continue
		}

		result.Failed++
		if isFatal(fr.Err) || e.opts.Policy == AbortOnError {
			return result, fr.Err
		}
		e.logger.Warn("skipping failed playlist", "file", path, "error", fr.Err)
		errs = append(errs, fr.Err)
	}

	return result, errors.Join(errs...)
}

// SyncFile syncs a single playlist file.
func (e *PlaylistEngine) SyncFile(ctx context.Context, path string, mode models.Mode, progress chan<- ProgressUpdate) (*FileResult, error) {
	owner, err := e.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, readFileUpdate(path, 1, 1))
	fr := e.syncFile(ctx, owner, path, mode, progress)
	return fr, fr.Err
}

// isFatal reports errors that invalidate the rest of the batch.
func isFatal(err error) bool {
	return shared.IsAuthError(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (e *PlaylistEngine) syncFile(ctx context.Context, owner, path string, mode models.Mode, progress chan<- ProgressUpdate) *FileResult {
	logger := shared.WithLogger(e.logger, "file", path)
	name := shared.PlaylistName(path)

	fr := &FileResult{
		Path:   path,
		Target: models.PlaylistTarget{Name: name, Mode: mode},
		Run:    models.NewSyncRun(path, name, mode),
	}

	fail := func(stage Stage, err error) *FileResult {
		fr.Err = &StageError{Stage: stage, Path: path, Err: err}
		fr.Run.SetPlaylistID(fr.Target.ID)
		fr.Run.Finish(fr.Written, models.RunFailed, fr.Err)
		e.record(ctx, logger, fr.Run)
		logger.Error("sync failed", "stage", stage, "error", err)
		e.sendProgress(progress, failedUpdate(path, fr.Err))
		return fr
	}

	logger.Info("reading playlist", "playlist", name, "mode", mode)
	descriptors, err := e.reader.Read(ctx, path)
	if err != nil {
		if !errors.Is(err, shared.ErrReadPlaylist) {
			err = fmt.Errorf("%w: %w", shared.ErrReadPlaylist, err)
		}
		return fail(StageRead, err)
	}
	logger.Debug("tracks found", "count", len(descriptors))

	e.sendProgress(progress, resolveUpdate(path, 0, len(descriptors), nil))
	results, err := e.resolver.resolve(ctx, descriptors, func(i int, res models.ResolutionResult) {
		logger.Debug("resolved track", "query", res.Descriptor.Name, "id", res.TrackID, "reason", res.Reason)
		e.sendProgress(progress, resolveUpdate(path, i+1, len(descriptors), &res))
	})
	if err != nil {
		return fail(StageResolve, err)
	}
	fr.Results = results
	fr.Run.Record(results)

	var existing map[models.TrackID]struct{}
	switch mode {
	case models.ModeUpdate:
		e.sendProgress(progress, locateUpdate(path, name))
		playlist, err := FindPlaylistByName(ctx, e.provider, name, e.opts.PageSize)
		if err != nil {
			return fail(StageLocate, err)
		}
		fr.Target.ID = playlist.ID

		existing, err = ExistingTrackIDs(ctx, e.provider, playlist.ID)
		if err != nil {
			return fail(StageLocate, err)
		}
	default:
		if !e.opts.DryRun {
			id, err := e.provider.CreatePlaylist(ctx, owner, name, e.opts.Public, false)
			if err != nil {
				return fail(StageCreate, fmt.Errorf("%w: %w", shared.ErrPlaylistCreate, err))
			}
			fr.Target.ID = id
			logger.Info("playlist created", "id", id)
			e.sendProgress(progress, createUpdate(path, fr.Target))
		}
	}

	resolved := ResolvedIDs(results)
	ids := Reconcile(resolved, mode, existing)
	fr.Plan = &models.ReconciliationPlan{Target: fr.Target, IDs: ids, Skipped: len(resolved) - len(ids)}
	fr.Run.SetPlaylistID(fr.Target.ID)
	e.sendProgress(progress, reconcileUpdate(path, fr.Plan))

	if e.opts.DryRun {
		logger.Info("dry run, nothing written", "playlist", name, "would_write", len(ids), "skipped", fr.Plan.Skipped)
		fr.Run.Finish(0, models.RunDryRun, nil)
		e.record(ctx, logger, fr.Run)
		e.sendProgress(progress, doneUpdate(path, fr))
		return fr
	}

	if err := e.write(ctx, owner, fr, progress); err != nil {
		return fail(StageWrite, fmt.Errorf("%w: %w", shared.ErrTrackWrite, err))
	}

	e.sendProgress(progress, descriptionUpdate(path))
	desc := DescriptionPrefix + e.now().Format(descriptionLayout)
	if err := e.provider.SetDescription(ctx, owner, fr.Target.ID, desc); err != nil {
		fr.DescriptionErr = fmt.Errorf("%w: %w", shared.ErrDescriptionUpdate, err)
		logger.Warn("error updating description", "error", err)
	}

	logger.Info("playlist synced", "playlist", name, "id", fr.Target.ID, "written", fr.Written, "unresolved", len(fr.Run.Unresolved()))
	fr.Run.Finish(fr.Written, models.RunOK, nil)
	e.record(ctx, logger, fr.Run)
	e.sendProgress(progress, doneUpdate(path, fr))
	return fr
}

// write sends the plan in batches of [services.MaxTracksPerRequest].
// Create mode replaces the playlist contents with the first batch; every other batch is appended.
func (e *PlaylistEngine) write(ctx context.Context, owner string, fr *FileResult, progress chan<- ProgressUpdate) error {
	ids := models.Strings(fr.Plan.IDs)
	batches := chunk(ids, services.MaxTracksPerRequest)

	if fr.Target.Mode == models.ModeCreate {
		if len(batches) == 0 {
			batches = [][]string{{}}
		}
		e.sendProgress(progress, writeUpdate(fr.Path, 1, len(batches)))
		if err := e.provider.ReplaceTracks(ctx, owner, fr.Target.ID, batches[0]); err != nil {
			return err
		}
		fr.Written += len(batches[0])
	}

	for i, batch := range batches {
		if i == 0 && fr.Target.Mode == models.ModeCreate {
			continue
		}
		e.sendProgress(progress, writeUpdate(fr.Path, i+1, len(batches)))
		if err := e.provider.AppendTracks(ctx, fr.Target.ID, batch); err != nil {
			return err
		}
		fr.Written += len(batch)
	}
	return nil
}

func (e *PlaylistEngine) record(ctx context.Context, logger *log.Logger, run *models.SyncRun) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/playlistfile"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
)

// Watch syncs playlist files in update mode each time they change, until interrupted.
//
// A failing sync is reported and watching continues. Authentication failures stop the watcher.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(cmd); err != nil {
		return err
	}

	paths, err := r.playlistPaths(cmd)
	if err != nil {
		return err
	}

	var local []string
	for _, p := range paths {
		if playlistfile.IsRemote(p) {
			r.printer.Warnf("not watching %s: remote playlists cannot be watched", p)
			continue
		}
		local = append(local, p)
	}
	if len(local) == 0 {
		return fmt.Errorf("%w: no local playlist files to watch", shared.ErrInvalidArgument)
	}

	unlock, err := r.lock(false)
	if err != nil {
		return err
	}
	defer unlock()

	engine, cleanup, err := r.newEngine(ctx, r.engineOptions(tasks.ContinueOnError, false))
	if err != nil {
		return err
	}
	defer cleanup()

	if cmd.Bool("initial") {
		for _, path := range local {
			if err := r.syncChanged(ctx, engine, path); err != nil {
				return err
			}
		}
	}

	w, err := newFileWatcher(local, cmd.Duration("debounce"), r.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	r.printer.Hintf("Watching %d file(s), press Ctrl+C to stop", len(local))

	err = w.Run(ctx, func(path string) error {
		return r.syncChanged(ctx, engine, path)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// syncChanged syncs one file in update mode. Only errors that end the watch are returned.
func (r *Runner) syncChanged(ctx context.Context, engine *tasks.PlaylistEngine, path string) error {
	progress := make(chan tasks.ProgressUpdate, 64)
	printed := r.drainProgress(progress)
	fr, err := engine.SyncFile(ctx, path, models.ModeUpdate, progress)
	close(progress)
	<-printed

	if fr != nil {
		r.printer.FileResult(*fr, false)
	}

	switch {
	case err == nil:
		return nil
	case shared.IsAuthError(err), ctx.Err() != nil:
		return err
	default:
		if fr == nil {
			r.printer.Errorf("%s: %v", path, err)
		}
		r.logger.Warn("sync failed, still watching", "file", path, "error", err)
		return nil
	}
}

// fileWatcher reports debounced changes to a fixed set of files.
//
// Parent directories are watched rather than the files themselves so that editors which save
// by renaming a temporary file over the original keep triggering events.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]string // cleaned absolute path to the path as given
	debounce time.Duration
	logger   *log.Logger
}

type pendingSync struct {
	path string
	gen  int
}

// debounceState remembers the newest event generation per file. Generations are drawn from
// one counter that only grows, so a timer from before a completed sync never matches again.
type debounceState struct {
	seq    int
	latest map[string]int
}

func newDebounceState() *debounceState {
	return &debounceState{latest: map[string]int{}}
}

// touch records an event for path and returns its generation.
func (d *debounceState) touch(path string) int {
	d.seq++
	d.latest[path] = d.seq
	return d.seq
}

// due reports whether p is the newest event for its file, and forgets the file when it is.
func (d *debounceState) due(p pendingSync) bool {
	if d.latest[p.path] != p.gen {
		return false
	}
	delete(d.latest, p.path)
	return true
}

func newFileWatcher(paths []string, debounce time.Duration, logger *log.Logger) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &fileWatcher{watcher: watcher, targets: map[string]string{}, debounce: debounce, logger: logger}

	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.targets[abs] = p

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	return w, nil
}

// Run calls fn for every target that changed and then stayed quiet for the debounce period.
// fn runs on the caller's goroutine; a non-nil error from fn stops Run.
func (w *fileWatcher) Run(ctx context.Context, fn func(path string) error) error {
	ready := make(chan pendingSync)
	pending := newDebounceState()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			path, watched := w.targets[filepath.Clean(event.Name)]
			if !watched || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			gen := pending.touch(path)
			time.AfterFunc(w.debounce, func() {
				select {
				case ready <- pendingSync{path: path, gen: gen}:
				case <-ctx.Done():
				}
			})

		case p := <-ready:
			// a later event superseded this one
			if !pending.due(p) {
				continue
			}

			w.logger.Info("playlist changed", "file", p.path)
			if err := fn(p.path); err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *fileWatcher) Close() error {
	return w.watcher.Close()
}

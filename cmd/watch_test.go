package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	tu "github.com/desertthunder/plsync/internal/testing"
)

func TestDebounceState(t *testing.T) {
	d := newDebounceState()

	first := d.touch("a.m3u")
	if !d.due(pendingSync{path: "a.m3u", gen: first}) {
		t.Fatal("expected the only event to be due")
	}

	// a timer from before the sync fires after a new change was recorded
	second := d.touch("a.m3u")
	if d.due(pendingSync{path: "a.m3u", gen: first}) {
		t.Error("stale generation from a completed sync must not be due")
	}
	if second == first {
		t.Errorf("generations must not repeat after a sync, got %d twice", first)
	}

	other := d.touch("b.m3u")
	third := d.touch("a.m3u")
	if d.due(pendingSync{path: "a.m3u", gen: second}) {
		t.Error("superseded generation must not be due")
	}
	if !d.due(pendingSync{path: "b.m3u", gen: other}) {
		t.Error("events of another file are independent")
	}
	if !d.due(pendingSync{path: "a.m3u", gen: third}) {
		t.Error("expected the newest generation to be due")
	}
	if d.due(pendingSync{path: "a.m3u", gen: third}) {
		t.Error("a generation is due only once")
	}
}

func TestFileWatcher(t *testing.T) {
	t.Run("debounces bursts of writes", func(t *testing.T) {
		dir := t.TempDir()
		target := writePlaylist(t, dir, "Mix.m3u", "A - One")
		other := writePlaylist(t, dir, "Other.m3u", "B - Two")

		w, err := newFileWatcher([]string{target}, 100*time.Millisecond, log.New(io.Discard))
		if err != nil {
			t.Fatalf("newFileWatcher failed: %v", err)
		}
		defer w.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changed := make(chan string, 10)
		done := make(chan error, 1)
		go func() {
			done <- w.Run(ctx, func(path string) error {
				changed <- path
				return nil
			})
		}()

		for i := 0; i < 5; i++ {
			if err := os.WriteFile(target, []byte("#EXTM3U\n"), 0644); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			os.WriteFile(other, []byte("#EXTM3U\n"), 0644)
			time.Sleep(10 * time.Millisecond)
		}

		select {
		case path := <-changed:
			if path != target {
				t.Errorf("expected %s, got %s", target, path)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("no change reported")
		}

		select {
		case path := <-changed:
			t.Errorf("expected a single debounced change, got another for %s", path)
		case <-time.After(300 * time.Millisecond):
		}

		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("callback error stops watching", func(t *testing.T) {
		dir := t.TempDir()
		target := writePlaylist(t, dir, "Mix.m3u", "A - One")

		w, err := newFileWatcher([]string{target}, 10*time.Millisecond, log.New(io.Discard))
		if err != nil {
			t.Fatalf("newFileWatcher failed: %v", err)
		}
		defer w.Close()

		done := make(chan error, 1)
		go func() {
			done <- w.Run(context.Background(), func(string) error { return shared.ErrTokenExpired })
		}()

		os.WriteFile(target, []byte("#EXTM3U\n"), 0644)

		select {
		case err := <-done:
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("watcher did not stop")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := newFileWatcher([]string{filepath.Join(t.TempDir(), "nope", "a.m3u")}, time.Second, log.New(io.Discard))
		if err == nil {
			t.Error("expected error watching a missing directory")
		}
	})
}

func TestWatchCommand(t *testing.T) {
	t.Run("remote only", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t), roadTripCatalog(), tu.NewMockProvider())

		err := run(runner, "watch", "https://example.com/list.m3u")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if output.Len() == 0 {
			t.Error("expected a warning about the remote playlist")
		}
	})

	t.Run("initial sync then stop", func(t *testing.T) {
		dir := t.TempDir()
		path := writePlaylist(t, dir, "Mix.m3u", "Artist One - Song One")
		provider := tu.NewMockProvider()
		provider.Playlists = append(provider.Playlists, services.Playlist{ID: "pl1", Name: "Mix"})
		runner, _ := newTestRunner(t, testConfig(t), roadTripCatalog(), provider)

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		err := runner.app().Run(ctx, []string{"plsync", "watch", "--initial", path})
		if err != nil {
			t.Fatalf("watch failed: %v", err)
		}
		if len(provider.AppendCalls) != 1 {
			t.Errorf("expected initial update-mode sync, got %v", provider.AppendCalls)
		}
	})

	t.Run("auth failure on initial sync", func(t *testing.T) {
		path := writePlaylist(t, t.TempDir(), "Mix.m3u", "Artist One - Song One")
		provider := tu.NewMockProvider()
		provider.UserErr = shared.ErrAuthFailed
		runner, _ := newTestRunner(t, testConfig(t), roadTripCatalog(), provider)

		err := run(runner, "watch", "--initial", path)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func finishedRun(path, name string, mode models.Mode, results []models.ResolutionResult, written int, status models.RunStatus, err error) *models.SyncRun {
	run := models.NewSyncRun(path, name, mode)
	run.Record(results)
	run.SetPlaylistID("pl-" + name)
	run.Finish(written, status, err)
	return run
}

func sampleResults() []models.ResolutionResult {
	return []models.ResolutionResult{
		{Descriptor: models.TrackDescriptor{Name: "A - One"}, TrackID: "1"},
		{Descriptor: models.TrackDescriptor{Name: "B - Two"}, Reason: models.ReasonNoMatch},
		{Descriptor: models.TrackDescriptor{Name: "C - Three"}, TrackID: "3"},
		{Descriptor: models.TrackDescriptor{Name: "D - Four"}, Reason: models.ReasonNoMatch},
	}
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "sync_runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
	if _, err := NextSequence(ctx, db, "sync_runs; DROP TABLE sync_runs"); err == nil {
		t.Error("expected error for invalid table name")
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := finishedRun("/music/Mix.m3u", "Mix", models.ModeCreate, sampleResults(), 2, models.RunOK, nil)

		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create rejects invalid run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("", "Mix", models.ModeCreate)

		if err := repo.Create(ctx, run); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := finishedRun("/music/Mix.m3u", "Mix", models.ModeUpdate, sampleResults(), 2, models.RunOK, nil)

		if err := repo.RecordRun(ctx, run); err != nil {
			t.Fatalf("failed to record run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if got.PlaylistName() != "Mix" || got.SourcePath() != "/music/Mix.m3u" || got.PlaylistID() != "pl-Mix" {
			t.Errorf("unexpected identity fields: %s %s %s", got.PlaylistName(), got.SourcePath(), got.PlaylistID())
		}
		if got.Mode() != models.ModeUpdate {
			t.Errorf("expected update mode, got %s", got.Mode())
		}
		if got.TracksTotal() != 4 || got.Resolved() != 2 || got.Written() != 2 {
			t.Errorf("unexpected totals: %d/%d/%d", got.TracksTotal(), got.Resolved(), got.Written())
		}
		if got.Status() != models.RunOK || got.ErrorMessage() != "" {
			t.Errorf("unexpected status %s (%q)", got.Status(), got.ErrorMessage())
		}
		if !slices.Equal(got.Unresolved(), []string{"B - Two", "D - Four"}) {
			t.Errorf("unexpected unresolved: %v", got.Unresolved())
		}
		if got.FinishedAt().IsZero() {
			t.Error("expected finished_at to round-trip")
		}
	})

	t.Run("Get failed run keeps error", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("a.m3u", "a", models.ModeCreate)
		run.Finish(0, models.RunFailed, errors.New("playlist not found"))

		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunFailed || got.ErrorMessage() != "playlist not found" {
			t.Errorf("unexpected failure fields: %s %q", got.Status(), got.ErrorMessage())
		}
		if got.PlaylistID() != "" {
			t.Errorf("expected empty playlist ID, got %q", got.PlaylistID())
		}
		if len(got.Unresolved()) != 0 {
			t.Errorf("expected no unresolved, got %v", got.Unresolved())
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List newest first", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for _, name := range []string{"one", "two", "three"} {
			if err := repo.Create(ctx, finishedRun(name+".m3u", name, models.ModeCreate, nil, 0, models.RunOK, nil)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].PlaylistName() != "three" || runs[1].PlaylistName() != "two" {
			t.Errorf("unexpected order: %d runs", len(runs))
		}

		all, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 runs, got %d", len(all))
		}
	})

	t.Run("ListByPlaylist", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for _, name := range []string{"Mix", "Other", "Mix"} {
			if err := repo.Create(ctx, finishedRun(name+".m3u", name, models.ModeUpdate, nil, 0, models.RunDryRun, nil)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.ListByPlaylist(ctx, "Mix", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].Sequence() != 3 {
			t.Errorf("expected 2 Mix runs newest first, got %d", len(runs))
		}
	})

	t.Run("Unresolved for unknown run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		names, err := repo.Unresolved(ctx, "nope")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(names) != 0 {
			t.Errorf("expected no names, got %v", names)
		}
	})

	t.Run("canceled create does not consume a sequence", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if err := repo.Create(ctx, finishedRun("a.m3u", "a", models.ModeCreate, nil, 0, models.RunOK, nil)); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		if err := repo.Create(canceled, finishedRun("b.m3u", "b", models.ModeCreate, nil, 0, models.RunOK, nil)); err == nil {
			t.Fatal("expected error with canceled context")
		}

		run := finishedRun("c.m3u", "c", models.ModeCreate, nil, 0, models.RunOK, nil)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.Sequence() != 2 {
			t.Errorf("expected sequence 2, got %d", run.Sequence())
		}
	})

	t.Run("Closed database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		db.Close()

		if err := repo.Create(ctx, finishedRun("a.m3u", "a", models.ModeCreate, nil, 0, models.RunOK, nil)); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.List(ctx, 10); err == nil {
			t.Error("expected error on closed database")
		}
	})

	t.Run("implements Repository", func(t *testing.T) {
		var _ models.Repository[*models.SyncRun] = (*RunRepository)(nil)
	})
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, sequence, playlist_name, playlist_id, source_path, mode, tracks_total, tracks_resolved,
	tracks_written, status, error_message, started_at, finished_at, created_at, updated_at`

// RunRepository implements models.Repository[*models.SyncRun] for sync history.
//
// Runs are append-only. Unresolved track names are stored alongside each run in file order.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun inserts a finished run. Satisfies tasks.RunRecorder.
func (r *RunRepository) RecordRun(ctx context.Context, run *models.SyncRun) error {
	return r.Create(ctx, run)
}

// Create inserts a run and its unresolved track names with a generated ID and sequence
func (r *RunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var finishedAt any
	if !run.FinishedAt().IsZero() {
		finishedAt = run.FinishedAt()
	}

	_, err = tx.ExecContext(ctx, query,
		id,
		sequence,
		run.PlaylistName(),
		nullString(run.PlaylistID()),
		run.SourcePath(),
		run.Mode().String(),
		run.TracksTotal(),
		run.Resolved(),
		run.Written(),
		string(run.Status()),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		finishedAt,
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, name := range run.Unresolved() {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO unresolved_tracks (run_id, position, name) VALUES (?, ?, ?)",
			id, i, name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert unresolved track: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, including its unresolved track names
func (r *RunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	names, err := r.Unresolved(ctx, id)
	if err != nil {
		return nil, err
	}
	run.SetUnresolved(names)

	return run, nil
}

// List retrieves the most recent runs, newest first. A non-positive limit returns every run.
//
// Unresolved track names are not loaded; use [RunRepository.Unresolved].
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	return r.query(ctx, `SELECT `+runColumns+` FROM sync_runs ORDER BY sequence DESC`, limit)
}

// ListByPlaylist retrieves the runs that targeted the named playlist, newest first.
func (r *RunRepository) ListByPlaylist(ctx context.Context, name string, limit int) ([]*models.SyncRun, error) {
	return r.query(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE playlist_name = ? ORDER BY sequence DESC`, limit, name)
}

func (r *RunRepository) query(ctx context.Context, query string, limit int, args ...any) ([]*models.SyncRun, error) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Unresolved returns the unresolved track names of a run in file order
func (r *RunRepository) Unresolved(ctx context.Context, runID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM unresolved_tracks WHERE run_id = ? ORDER BY position ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved tracks: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved track: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return names, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a [models.SyncRun]
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		id           string
		sequence     int
		playlistName string
		playlistID   sql.NullString
		sourcePath   string
		mode         string
		total        int
		resolved     int
		written      int
		status       string
		errorMessage sql.NullString
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&id, &sequence, &playlistName, &playlistID, &sourcePath, &mode, &total, &resolved,
		&written, &status, &errorMessage, &startedAt, &finishedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	m, err := models.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run %s: %w", id, err)
	}

	return models.RestoreSyncRun(
		id, sequence, playlistName, playlistID.String, sourcePath, m,
		total, resolved, written, models.RunStatus(status), errorMessage.String,
		startedAt, finishedAt.Time, createdAt, updatedAt,
	), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

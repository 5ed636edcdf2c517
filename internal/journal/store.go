package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"autosplit/internal/services"
)

// Store persists runs and segments.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the journal database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Export callbacks write from several goroutines.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a running run.
func (s *Store) StartRun(ctx context.Context, id, sourceURL string) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id required")
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_url, status, started_at) VALUES (?, ?, ?, ?)`,
		id, sourceURL, RunRunning, formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{ID: id, SourceURL: sourceURL, Status: RunRunning, StartedAt: now}, nil
}

// FinishRun stores the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, finalDuration float64, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, final_duration = ?, error_message = ? WHERE id = ?`,
		status, formatTime(time.Now().UTC()), finalDuration, nullableString(message), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, "run", id)
}

// RecordSegment inserts a segment whose export has just launched.
func (s *Store) RecordSegment(ctx context.Context, seg Segment) error {
	if seg.ExportStatus == "" {
		seg.ExportStatus = ExportRunning
	}
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO segments (
            run_id, ordinal, label, start_seconds, end_seconds,
            output_path, export_status, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.RunID, seg.Ordinal, seg.Label, seg.Start, seg.End,
		nullableString(seg.OutputPath), seg.ExportStatus, nullableString(seg.ErrorMessage), now, now,
	); err != nil {
		return fmt.Errorf("insert segment %d: %w", seg.Ordinal, err)
	}
	return nil
}

// FinishSegment stores the export result of a segment.
func (s *Store) FinishSegment(ctx context.Context, runID string, ordinal int, status ExportStatus, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments SET export_status = ?, error_message = ?, updated_at = ? WHERE run_id = ? AND ordinal = ?`,
		status, nullableString(message), formatTime(time.Now().UTC()), runID, ordinal,
	)
	if err != nil {
		return fmt.Errorf("finish segment %d: %w", ordinal, err)
	}
	return requireRow(res, "segment", fmt.Sprintf("%s/%d", runID, ordinal))
}

const runColumns = `r.id, r.source_url, r.status, r.started_at, r.finished_at, r.final_duration, r.error_message,
    (SELECT COUNT(1) FROM segments s WHERE s.run_id = r.id),
    (SELECT COUNT(1) FROM segments s WHERE s.run_id = r.id AND s.export_status = 'failed')`

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id, returning nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// LatestRun returns the most recently started run, or nil.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// ListSegments returns the segments of a run ordered by ordinal.
func (s *Store) ListSegments(ctx context.Context, runID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, ordinal, label, start_seconds, end_seconds, output_path,
                export_status, error_message, created_at, updated_at
         FROM segments WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var (
			seg              Segment
			output, errMsg   sql.NullString
			created, updated string
		)
		if err := rows.Scan(&seg.RunID, &seg.Ordinal, &seg.Label, &seg.Start, &seg.End, &output,
			&seg.ExportStatus, &errMsg, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.OutputPath = output.String
		seg.ErrorMessage = errMsg.String
		seg.CreatedAt, _ = parseTime(created)
		seg.UpdatedAt, _ = parseTime(updated)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run              Run
		started          string
		finished, errMsg sql.NullString
	)
	if err := row.Scan(&run.ID, &run.SourceURL, &run.Status, &started, &finished,
		&run.FinalDuration, &errMsg, &run.SegmentCount, &run.FailedExports); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt, _ = parseTime(started)
	if finished.Valid {
		if t, err := parseTime(finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, services.ErrNotFound)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

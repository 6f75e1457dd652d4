package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Older databases are
// rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Run statuses.
const (
	RunRunning   = "running"
	RunComplete  = "complete"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// Run is one persisted conversion run.
type Run struct {
	ID           string
	Status       string
	FileCount    int
	SettingsJSON string
	StartedAt    time.Time
	FinishedAt   time.Time
	Succeeded    int
	Failed       int
}

// FileRecord is the persisted state of one file within a run.
type FileRecord struct {
	RunID        string
	Index        int
	InputPath    string
	OutputPath   string
	State        string
	ErrorMessage string
	Elapsed      time.Duration
	StreamsJSON  string
	UpdatedAt    time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, id string, fileCount int, settingsJSON string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, status, file_count, settings_json, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, RunRunning, fileCount, nullableString(settingsJSON), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run. A run that already left
// the running state keeps its first terminal status.
func (s *Store) FinishRun(ctx context.Context, id, status string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ? AND status = ?`,
		status, formatTime(time.Now()), id, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFile inserts or updates the row for one file of a run.
func (s *Store) RecordFile(ctx context.Context, rec FileRecord) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO files (run_id, file_index, input_path, output_path, state, error_message, elapsed_ms, streams_json, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(run_id, file_index) DO UPDATE SET
             output_path = excluded.output_path,
             state = excluded.state,
             error_message = excluded.error_message,
             elapsed_ms = excluded.elapsed_ms,
             streams_json = excluded.streams_json,
             updated_at = excluded.updated_at`,
		rec.RunID,
		rec.Index,
		rec.InputPath,
		nullableString(rec.OutputPath),
		rec.State,
		nullableString(rec.ErrorMessage),
		rec.Elapsed.Milliseconds(),
		nullableString(rec.StreamsJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record file: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.status, r.file_count, r.settings_json, r.started_at, r.finished_at,
                COALESCE(SUM(CASE WHEN f.state = 'succeeded' THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN f.state = 'failed' THEN 1 ELSE 0 END), 0)
         FROM runs r LEFT JOIN files f ON f.run_id = r.id
         GROUP BY r.id
         ORDER BY r.started_at DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			settings    sql.NullString
			startedRaw  string
			finishedRaw sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Status, &run.FileCount, &settings, &startedRaw, &finishedRaw,
			&run.Succeeded, &run.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.SettingsJSON = settings.String
		run.StartedAt = parseTime(startedRaw)
		run.FinishedAt = parseTime(finishedRaw.String)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id or unique id prefix. It returns nil when nothing
// matches.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1<<20)
	if err != nil {
		return nil, err
	}
	var match *Run
	for i := range runs {
		if runs[i].ID == idOrPrefix {
			return &runs[i], nil
		}
		if strings.HasPrefix(runs[i].ID, idOrPrefix) {
			if match != nil {
				return nil, fmt.Errorf("run prefix %q is ambiguous", idOrPrefix)
			}
			match = &runs[i]
		}
	}
	return match, nil
}

// RunFiles lists the files of a run in queue order.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, file_index, input_path, output_path, state, error_message, elapsed_ms, streams_json, updated_at
         FROM files WHERE run_id = ? ORDER BY file_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var (
			rec        FileRecord
			output     sql.NullString
			errMsg     sql.NullString
			elapsedMS  int64
			streams    sql.NullString
			updatedRaw string
		)
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.InputPath, &output, &rec.State, &errMsg,
			&elapsedMS, &streams, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		rec.OutputPath = output.String
		rec.ErrorMessage = errMsg.String
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.StreamsJSON = streams.String
		rec.UpdatedAt = parseTime(updatedRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		res     sql.Result
		execErr error
	)
	err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

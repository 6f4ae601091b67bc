package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrent performance
	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_cache_size=10000&_foreign_keys=ON", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		scenario TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		requested INTEGER NOT NULL,
		successes INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		summary TEXT,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		signature TEXT,
		status TEXT NOT NULL,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		fee_lamports INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the initial schema. Checked before adding so
	// re-running migrations on an existing database is a no-op.
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"attempts", "route", "ALTER TABLE attempts ADD COLUMN route TEXT"},
		{"attempts", "tip_refund_lamports", "ALTER TABLE attempts ADD COLUMN tip_refund_lamports INTEGER NOT NULL DEFAULT 0"},
		{"runs", "amount_lamports", "ALTER TABLE runs ADD COLUMN amount_lamports INTEGER NOT NULL DEFAULT 0"},
		{"runs", "recipient", "ALTER TABLE runs ADD COLUMN recipient TEXT NOT NULL DEFAULT ''"},
	}

	for _, m := range migrations {
		if !s.columnExists(m.table, m.column) {
			if _, err := s.db.Exec(m.ddl); err != nil {
				// Log but don't fail - migration might have already been applied
				fmt.Fprintf(os.Stderr, "warning: migration failed for %s.%s: %v\n", m.table, m.column, err)
			}
		}
	}

	return nil
}

// columnExists checks if a column exists in a table.
// Note: table and column names are validated to prevent SQL injection.
// SQLite identifiers only allow alphanumeric chars and underscore.
func (s *SQLiteStorage) columnExists(table, column string) bool {
	if !isValidIdentifier(table) || !isValidIdentifier(column) {
		return false
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = '%s'", table, column)
	var count int
	if err := s.db.QueryRow(query).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// isValidIdentifier checks if a string is a valid SQLite identifier.
// Only allows alphanumeric characters and underscore.
func isValidIdentifier(s string) bool {
	if len(s) == 0 || len(s) > 128 {
		return false
	}
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateRun persists a new run in running state.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, scenario, status, requested, amount_lamports, recipient, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, run.Scenario, run.Status, run.Requested, run.AmountLamports, run.Recipient, run.CreatedAt)
	return err
}

// UpdateRunProgress updates the live success and failure counters.
func (s *SQLiteStorage) UpdateRunProgress(ctx context.Context, id string, successes, failures int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET successes = ?, failures = ? WHERE id = ?
	`, successes, failures, id)
	return err
}

// CompleteRun marks a run completed with its final summary.
func (s *SQLiteStorage) CompleteRun(ctx context.Context, id string, summary *types.RunSummary, successes, failures int) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?,
			successes = ?,
			failures = ?,
			summary = ?,
			completed_at = ?
		WHERE id = ?
	`, types.RunStatusCompleted, successes, failures, string(summaryJSON), time.Now(), id)
	return err
}

// FailRun marks a run failed with an error message.
func (s *SQLiteStorage) FailRun(ctx context.Context, id string, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`, types.RunStatusFailed, errorMessage, time.Now(), id)
	return err
}

const runColumns = `id, name, scenario, status, requested,
	COALESCE(amount_lamports, 0), COALESCE(recipient, ''),
	successes, failures, summary, error_message, created_at, completed_at`

// GetRun retrieves a run by ID. Returns nil, nil when not found.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest-first, optionally filtered by status.
func (s *SQLiteStorage) ListRuns(ctx context.Context, status types.RunStatus, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
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

// InsertAttempt persists one attempt.
func (s *SQLiteStorage) InsertAttempt(ctx context.Context, attempt *Attempt) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, signature, status, latency_ms, fee_lamports, tip_refund_lamports, route, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, attempt.RunID, nullString(attempt.Signature), attempt.Status, attempt.LatencyMs,
		attempt.FeeLamports, attempt.TipRefundLamports,
		nullString(attempt.Route), nullString(attempt.ErrorMessage), attempt.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		attempt.ID = id
	}
	return nil
}

// GetAttempts returns a run's attempts in insertion order.
func (s *SQLiteStorage) GetAttempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, signature, status, latency_ms, fee_lamports,
			COALESCE(tip_refund_lamports, 0), route, error_message, created_at
		FROM attempts
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAttempts(rows)
}

// WindowStats returns attempts of completed runs created at or after since,
// with the run-level totals needed for aggregation.
func (s *SQLiteStorage) WindowStats(ctx context.Context, since time.Time) (*WindowStats, error) {
	stats := &WindowStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(requested), 0)
		FROM runs
		WHERE status = ? AND created_at >= ?
	`, types.RunStatusCompleted, since).Scan(&stats.Runs, &stats.Requested)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.run_id, a.signature, a.status, a.latency_ms, a.fee_lamports,
			COALESCE(a.tip_refund_lamports, 0), a.route, a.error_message, a.created_at
		FROM attempts a
		JOIN runs r ON r.id = a.run_id
		WHERE r.status = ? AND r.created_at >= ?
		ORDER BY a.id
	`, types.RunStatusCompleted, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats.Attempts, err = collectAttempts(rows)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func collectAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var signature, route, errorMsg sql.NullString
		err := rows.Scan(&a.ID, &a.RunID, &signature, &a.Status, &a.LatencyMs,
			&a.FeeLamports, &a.TipRefundLamports, &route, &errorMsg, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		a.Signature = signature.String
		a.Route = route.String
		a.ErrorMessage = errorMsg.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var summaryJSON, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Name, &run.Scenario, &run.Status, &run.Requested,
		&run.AmountLamports, &run.Recipient,
		&run.Successes, &run.Failures, &summaryJSON, &errorMsg, &run.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if errorMsg.Valid {
		run.ErrorMessage = errorMsg.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		run.Summary = &types.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), run.Summary); err != nil {
			slog.Warn("failed to unmarshal run summary",
				"runID", run.ID,
				"error", err.Error())
			run.Summary = nil
		}
	}

	return &run, nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

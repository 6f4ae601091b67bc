// Package storage provides persistence of benchmark runs and attempts.
package storage

import (
	"context"
	"time"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// Storage is the persistence interface for runs and attempts.
type Storage interface {
	// CreateRun persists a new run in running state.
	CreateRun(ctx context.Context, run *Run) error

	// UpdateRunProgress updates the live success and failure counters.
	UpdateRunProgress(ctx context.Context, id string, successes, failures int) error

	// CompleteRun marks a run completed with its final summary.
	CompleteRun(ctx context.Context, id string, summary *types.RunSummary, successes, failures int) error

	// FailRun marks a run failed with an error message.
	FailRun(ctx context.Context, id string, errorMessage string) error

	// GetRun retrieves a run by ID. Returns nil, nil when not found.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest-first, optionally filtered by status.
	// A limit of 0 means no limit.
	ListRuns(ctx context.Context, status types.RunStatus, limit int) ([]Run, error)

	// InsertAttempt persists one attempt.
	InsertAttempt(ctx context.Context, attempt *Attempt) error

	// GetAttempts returns a run's attempts in insertion order.
	GetAttempts(ctx context.Context, runID string) ([]Attempt, error)

	// WindowStats returns attempts belonging to completed runs created at or
	// after since, with the run-level totals needed for aggregation.
	WindowStats(ctx context.Context, since time.Time) (*WindowStats, error)

	// Close releases the underlying resources.
	Close() error
}

package storage

import (
	"time"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// Run is a persisted benchmark run.
type Run struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Scenario       types.Scenario    `json:"scenario"`
	Status         types.RunStatus   `json:"status"`
	Requested      int               `json:"requested"`
	AmountLamports uint64            `json:"amountLamports"`
	Recipient      string            `json:"recipient"`
	Successes      int               `json:"successes"`
	Failures       int               `json:"failures"`
	Summary        *types.RunSummary `json:"summary,omitempty"` // set once terminal
	ErrorMessage   string            `json:"errorMessage,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

// Attempt is one persisted transaction attempt within a run.
type Attempt struct {
	ID                int64               `json:"id"`
	RunID             string              `json:"runId"`
	Signature         string              `json:"signature,omitempty"`
	Status            types.AttemptStatus `json:"status"`
	LatencyMs         int64               `json:"latencyMs"`
	FeeLamports       uint64              `json:"feeLamports"`
	TipRefundLamports uint64              `json:"tipRefundLamports"`
	Route             string              `json:"route,omitempty"`
	ErrorMessage      string              `json:"errorMessage,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// RunDetail bundles a run with its attempts for the detail endpoint.
type RunDetail struct {
	Run      Run       `json:"run"`
	Attempts []Attempt `json:"attempts"`
}

// WindowStats is the raw material for a window aggregate: the attempts in
// the window plus the run-level totals the attempts alone cannot supply.
type WindowStats struct {
	Attempts  []Attempt
	Requested int // sum of requested across runs in the window
	Runs      int // completed runs in the window
}

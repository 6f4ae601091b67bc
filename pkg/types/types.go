// Package types contains public API types for the benchmark service.
// These types form the external interface and must remain backwards-compatible.
package types

import "time"

// Scenario identifies a benchmark scenario preset.
type Scenario string

const (
	ScenarioTransfer Scenario = "transfer"
	ScenarioAirdrop  Scenario = "airdrop"
	ScenarioSwap     Scenario = "swap"
	ScenarioMint     Scenario = "mint"
	ScenarioPayment  Scenario = "payment"
)

// RunStatus represents the lifecycle state of a benchmark run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AttemptStatus represents the outcome of a single submitted transaction.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// Network selects the Gateway network.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkDevnet  Network = "devnet"
)

// TipTier is the coarse-grained delivery tip tier accepted by the Gateway.
type TipTier string

const (
	TipTierLow    TipTier = "low"
	TipTierMedium TipTier = "medium"
	TipTierHigh   TipTier = "high"
	TipTierMax    TipTier = "max"
)

// Valid reports whether t is a tier the Gateway accepts.
func (t TipTier) Valid() bool {
	switch t {
	case TipTierLow, TipTierMedium, TipTierHigh, TipTierMax:
		return true
	}
	return false
}

// PriorityTier is the compute-unit price tier accepted by the Gateway.
type PriorityTier string

const (
	PriorityTierLow    PriorityTier = "low"
	PriorityTierMedium PriorityTier = "medium"
	PriorityTierHigh   PriorityTier = "high"
)

// Valid reports whether p is a tier the Gateway accepts.
func (p PriorityTier) Valid() bool {
	switch p {
	case PriorityTierLow, PriorityTierMedium, PriorityTierHigh:
		return true
	}
	return false
}

// Window is a dashboard aggregation window.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

// Duration returns the window length and whether the window is valid.
func (w Window) Duration() (time.Duration, bool) {
	switch w {
	case Window1h:
		return time.Hour, true
	case Window24h:
		return 24 * time.Hour, true
	case Window7d:
		return 7 * 24 * time.Hour, true
	case Window30d:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// Run count bounds enforced before any attempt is created.
const (
	MinRunCount = 1
	MaxRunCount = 100
)

// ScenarioDefaults describes a scenario preset. All scenarios currently share
// one transfer instruction; presets differ only in default count and amount.
type ScenarioDefaults struct {
	Scenario      Scenario `json:"scenario"`
	DisplayName   string   `json:"displayName"`
	DefaultCount  int      `json:"defaultCount"`
	DefaultAmount uint64   `json:"defaultAmountLamports"`
}

// RunSummary holds the final aggregate statistics of a run (or a window of
// runs). Monetary values are integer lamports, the fixed-point representation
// with 9 fractional digits; sums must be taken in lamports, never in SOL.
type RunSummary struct {
	SuccessRate       float64 `json:"successRate"` // percent, 1 decimal place
	AvgLatencyMs      float64 `json:"avgLatencyMs"`
	MinLatencyMs      float64 `json:"minLatencyMs"`
	MaxLatencyMs      float64 `json:"maxLatencyMs"`
	AvgCostLamports   float64 `json:"avgCostLamports"`
	TotalCostLamports uint64  `json:"totalCostLamports"`
	TotalTipRefunded  uint64  `json:"totalTipRefundedLamports"`
}

// WindowSummary is the dashboard aggregate across all completed runs in a
// time window.
type WindowSummary struct {
	Window    Window     `json:"window"`
	Runs      int        `json:"runs"`
	Requested int        `json:"requestedTransactions"`
	Summary   RunSummary `json:"summary"`
}

// StartRunRequest is the API request to start a benchmark run.
type StartRunRequest struct {
	Name           string   `json:"name"`
	Scenario       Scenario `json:"scenario"`
	Count          int      `json:"count,omitempty"`          // 0 = scenario default
	AmountLamports uint64   `json:"amountLamports,omitempty"` // 0 = scenario default
	Recipient      string   `json:"recipient,omitempty"`      // "" = configured default
}

// AutopilotStatus reports the state of the scheduled-run service.
type AutopilotStatus struct {
	Enabled     bool     `json:"enabled"`
	Scenario    Scenario `json:"scenario,omitempty"`
	IntervalSec int      `json:"intervalSec,omitempty"`
	RunsStarted int      `json:"runsStarted"`
	LastRunID   string   `json:"lastRunId,omitempty"`
	LastError   string   `json:"lastError,omitempty"`
}

// EventKind tags a progress event.
type EventKind string

const (
	EventStart    EventKind = "run_start"
	EventProgress EventKind = "run_progress"
	EventTerminal EventKind = "run_terminal"
)

// ProgressEvent is one run lifecycle event. Delivery is best-effort:
// consumers must tolerate missed events and re-derive state from the
// persistence store on reconnect.
type ProgressEvent struct {
	Kind      EventKind   `json:"kind"`
	RunID     string      `json:"runId"`
	Requested int         `json:"requested"`
	Completed int         `json:"completed,omitempty"`
	Successes int         `json:"successes,omitempty"`
	Failures  int         `json:"failures,omitempty"`
	Status    RunStatus   `json:"status,omitempty"` // set on terminal events
	Error     string      `json:"error,omitempty"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
}

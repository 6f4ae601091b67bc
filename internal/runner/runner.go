// Package runner executes benchmark runs: it drives scripted transactions
// through the Gateway one at a time, records every attempt, and publishes
// progress events.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/gatewaylab/gwbench/internal/chainrpc"
	"github.com/gatewaylab/gwbench/internal/gateway"
	"github.com/gatewaylab/gwbench/internal/metrics"
	"github.com/gatewaylab/gwbench/internal/storage"
	"github.com/gatewaylab/gwbench/internal/txbuilder"
	"github.com/gatewaylab/gwbench/internal/wallet"
	"github.com/gatewaylab/gwbench/pkg/types"
)

// DefaultAttemptDelay paces consecutive attempts. One transaction per second
// keeps the benchmark well under any sane rate limit and makes per-attempt
// latency attributable.
const DefaultAttemptDelay = time.Second

// Broadcaster publishes progress events. Delivery is fire-and-forget.
type Broadcaster interface {
	Publish(event types.ProgressEvent)
}

// EndpointPicker selects a healthy RPC endpoint for a run.
type EndpointPicker interface {
	Pick(ctx context.Context) (chainrpc.Client, error)
}

// ValidationError marks a request rejected before any state was created.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Config holds runner tuning.
type Config struct {
	// AttemptDelay is the pause between consecutive attempts. Zero means
	// DefaultAttemptDelay.
	AttemptDelay time.Duration

	// TipTier and PriorityTier steer the Gateway's optimization of every
	// benchmark transaction.
	TipTier      types.TipTier
	PriorityTier types.PriorityTier

	// DefaultRecipient receives transfers when a request names none.
	DefaultRecipient solana.PublicKey
}

// Service orchestrates benchmark runs.
type Service struct {
	store    storage.Storage
	gw       gateway.Client
	picker   EndpointPicker
	registry *txbuilder.Registry
	signer   *wallet.Signer
	hub      Broadcaster
	prom     *metrics.PrometheusMetrics
	logger   *slog.Logger

	delay            time.Duration
	tipTier          types.TipTier
	priorityTier     types.PriorityTier
	defaultRecipient solana.PublicKey

	wg sync.WaitGroup
}

// New creates a runner service.
func New(store storage.Storage, gw gateway.Client, picker EndpointPicker,
	registry *txbuilder.Registry, signer *wallet.Signer, hub Broadcaster,
	prom *metrics.PrometheusMetrics, cfg Config, logger *slog.Logger) *Service {

	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.AttemptDelay
	if delay == 0 {
		delay = DefaultAttemptDelay
	}
	tipTier := cfg.TipTier
	if tipTier == "" {
		tipTier = types.TipTierMedium
	}
	priorityTier := cfg.PriorityTier
	if priorityTier == "" {
		priorityTier = types.PriorityTierMedium
	}

	return &Service{
		store:            store,
		gw:               gw,
		picker:           picker,
		registry:         registry,
		signer:           signer,
		hub:              hub,
		prom:             prom,
		logger:           logger,
		delay:            delay,
		tipTier:          tipTier,
		priorityTier:     priorityTier,
		defaultRecipient: cfg.DefaultRecipient,
	}
}

// Scenarios returns the available scenario presets.
func (s *Service) Scenarios() []types.ScenarioDefaults {
	return s.registry.Scenarios()
}

// StartRun validates the request, persists the run, and launches execution
// in the background. Validation failures leave no trace in storage.
func (s *Service) StartRun(ctx context.Context, req types.StartRunRequest) (*storage.Run, error) {
	builder, err := s.registry.Get(req.Scenario)
	if err != nil {
		return nil, validationErrorf("unknown scenario %q", req.Scenario)
	}
	defaults := builder.Defaults()

	count := req.Count
	if count == 0 {
		count = defaults.DefaultCount
	}
	if count < types.MinRunCount || count > types.MaxRunCount {
		return nil, validationErrorf("count %d outside [%d,%d]", count, types.MinRunCount, types.MaxRunCount)
	}

	amount := req.AmountLamports
	if amount == 0 {
		amount = defaults.DefaultAmount
	}

	recipient := s.defaultRecipient
	if req.Recipient != "" {
		recipient, err = wallet.ParseAddress(req.Recipient)
		if err != nil {
			return nil, validationErrorf("invalid recipient: %v", err)
		}
	}
	if recipient.IsZero() {
		return nil, validationErrorf("no recipient: request omitted one and no default is configured")
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s benchmark", defaults.DisplayName)
	}

	run := &storage.Run{
		ID:             uuid.New().String(),
		Name:           name,
		Scenario:       req.Scenario,
		Status:         types.RunStatusRunning,
		Requested:      count,
		AmountLamports: amount,
		Recipient:      recipient.String(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Runs are not cancellable once started; they outlive the request.
		s.execute(context.Background(), run, builder, recipient)
	}()

	return run, nil
}

// Wait blocks until all in-flight runs finish. Used during shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) execute(ctx context.Context, run *storage.Run, builder txbuilder.Builder, recipient solana.PublicKey) {
	logger := s.logger.With(
		slog.String("runID", run.ID),
		slog.String("scenario", string(run.Scenario)),
	)
	logger.Info("run started", slog.Int("requested", run.Requested))

	if s.prom != nil {
		s.prom.ActiveRuns.Inc()
		defer s.prom.ActiveRuns.Dec()
	}

	s.hub.Publish(types.ProgressEvent{
		Kind:      types.EventStart,
		RunID:     run.ID,
		Requested: run.Requested,
		Timestamp: time.Now().UnixMilli(),
	})

	rpcClient, err := s.picker.Pick(ctx)
	if err != nil {
		logger.Error("run aborted, no healthy endpoint", slog.String("error", err.Error()))
		s.finishFailed(ctx, run, fmt.Sprintf("no healthy RPC endpoint: %v", err))
		return
	}

	var acc metrics.Accumulator
	acc.AddRequested(run.Requested)

	for i := 0; i < run.Requested; i++ {
		attempt := s.attempt(ctx, run, builder, recipient, rpcClient)

		if err := s.store.InsertAttempt(ctx, attempt); err != nil {
			// A lost attempt record skews history but should not kill the run.
			logger.Error("failed to persist attempt", slog.String("error", err.Error()))
		}

		acc.Add(attemptSample(attempt))
		s.observeAttempt(run, attempt)

		if err := s.store.UpdateRunProgress(ctx, run.ID, acc.Successes(), acc.Completed()-acc.Successes()); err != nil {
			logger.Error("failed to update progress", slog.String("error", err.Error()))
		}

		s.hub.Publish(types.ProgressEvent{
			Kind:      types.EventProgress,
			RunID:     run.ID,
			Requested: run.Requested,
			Completed: acc.Completed(),
			Successes: acc.Successes(),
			Failures:  acc.Completed() - acc.Successes(),
			Timestamp: time.Now().UnixMilli(),
		})

		if i < run.Requested-1 {
			time.Sleep(s.delay)
		}
	}

	summary := acc.Summary()
	successes := acc.Successes()
	failures := acc.Completed() - successes

	if err := s.store.CompleteRun(ctx, run.ID, &summary, successes, failures); err != nil {
		logger.Error("failed to complete run", slog.String("error", err.Error()))
	}
	if s.prom != nil {
		s.prom.RunsTotal.WithLabelValues(string(types.RunStatusCompleted)).Inc()
	}

	logger.Info("run completed",
		slog.Int("successes", successes),
		slog.Int("failures", failures),
		slog.Float64("successRate", summary.SuccessRate),
		slog.Float64("avgLatencyMs", summary.AvgLatencyMs),
		slog.Uint64("totalCostLamports", summary.TotalCostLamports),
	)

	s.hub.Publish(types.ProgressEvent{
		Kind:      types.EventTerminal,
		RunID:     run.ID,
		Requested: run.Requested,
		Completed: acc.Completed(),
		Successes: successes,
		Failures:  failures,
		Status:    types.RunStatusCompleted,
		Summary:   &summary,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Service) finishFailed(ctx context.Context, run *storage.Run, msg string) {
	if err := s.store.FailRun(ctx, run.ID, msg); err != nil {
		s.logger.Error("failed to mark run failed",
			slog.String("runID", run.ID),
			slog.String("error", err.Error()))
	}
	if s.prom != nil {
		s.prom.RunsTotal.WithLabelValues(string(types.RunStatusFailed)).Inc()
	}
	s.hub.Publish(types.ProgressEvent{
		Kind:      types.EventTerminal,
		RunID:     run.ID,
		Requested: run.Requested,
		Status:    types.RunStatusFailed,
		Error:     msg,
		Timestamp: time.Now().UnixMilli(),
	})
}

// attempt executes one transaction end to end. Measured latency covers the
// Gateway window only: optimize, sign, and submit. Instruction building and
// the blockhash fetch are setup and stay outside the clock; a failure during
// setup still records a best-effort latency from the start of the attempt.
func (s *Service) attempt(ctx context.Context, run *storage.Run, builder txbuilder.Builder, recipient solana.PublicKey, rpcClient chainrpc.Client) *storage.Attempt {
	start := time.Now()
	fail := func(stage string, err error) *storage.Attempt {
		s.logger.Warn("attempt failed",
			slog.String("runID", run.ID),
			slog.String("stage", stage),
			slog.String("error", err.Error()))
		if s.prom != nil {
			s.prom.GatewayErrors.WithLabelValues(stage).Inc()
		}
		return &storage.Attempt{
			RunID:        run.ID,
			Status:       types.AttemptFailed,
			LatencyMs:    time.Since(start).Milliseconds(),
			ErrorMessage: fmt.Sprintf("%s: %v", stage, err),
			CreatedAt:    time.Now().UTC(),
		}
	}

	instrs, err := builder.Build(txbuilder.Params{
		Sender:         s.signer.PublicKey(),
		Recipient:      recipient,
		AmountLamports: run.AmountLamports,
	})
	if err != nil {
		return fail("build", err)
	}

	blockhash, err := rpcClient.GetLatestBlockhash(ctx)
	if err != nil {
		return fail("blockhash", err)
	}

	tx, err := solana.NewTransaction(instrs, blockhash, solana.TransactionPayer(s.signer.PublicKey()))
	if err != nil {
		return fail("assemble", err)
	}

	// Reset the clock now that setup is done.
	start = time.Now()

	built, err := s.gw.BuildTransaction(ctx, tx, gateway.BuildOptions{
		TipTier:      s.tipTier,
		PriorityTier: s.priorityTier,
	})
	if err != nil {
		return fail("optimize", err)
	}

	if err := s.signer.SignTransaction(built.Transaction); err != nil {
		return fail("sign", err)
	}

	sub, err := s.gw.Submit(ctx, built.Transaction)
	if err != nil {
		return fail("submit", err)
	}

	// Prefer the fee the route actually charged; fall back to the optimize
	// estimate when the route omits it.
	fee := sub.FeeLamports
	if fee == 0 {
		fee = built.FeeLamports
	}

	return &storage.Attempt{
		RunID:             run.ID,
		Signature:         sub.Signature,
		Status:            types.AttemptSuccess,
		LatencyMs:         time.Since(start).Milliseconds(),
		FeeLamports:       fee,
		TipRefundLamports: sub.TipRefundLamports,
		Route:             sub.Route,
		CreatedAt:         time.Now().UTC(),
	}
}

func (s *Service) observeAttempt(run *storage.Run, attempt *storage.Attempt) {
	if s.prom == nil {
		return
	}
	s.prom.AttemptsTotal.WithLabelValues(string(attempt.Status), string(run.Scenario)).Inc()
	if attempt.LatencyMs > 0 {
		s.prom.AttemptLatency.WithLabelValues(string(run.Scenario)).Observe(float64(attempt.LatencyMs) / 1000)
	}
	if attempt.Status == types.AttemptSuccess && attempt.FeeLamports > 0 {
		s.prom.FeeLamports.Observe(float64(attempt.FeeLamports))
	}
	if attempt.TipRefundLamports > 0 {
		s.prom.TipRefunded.Add(float64(attempt.TipRefundLamports))
	}
}

func attemptSample(a *storage.Attempt) metrics.Sample {
	return metrics.Sample{
		Success:    a.Status == types.AttemptSuccess,
		LatencyMs:  a.LatencyMs,
		HasLatency: a.LatencyMs > 0,
		Fee:        a.FeeLamports,
		HasFee:     a.Status == types.AttemptSuccess && a.FeeLamports > 0,
		TipRefund:  a.TipRefundLamports,
	}
}

// Aggregate folds all completed runs in the window into one summary.
func (s *Service) Aggregate(ctx context.Context, window types.Window) (*types.WindowSummary, error) {
	dur, ok := window.Duration()
	if !ok {
		return nil, validationErrorf("unknown window %q", window)
	}

	stats, err := s.store.WindowStats(ctx, time.Now().UTC().Add(-dur))
	if err != nil {
		return nil, fmt.Errorf("failed to load window stats: %w", err)
	}

	var acc metrics.Accumulator
	acc.AddRequested(stats.Requested)
	for i := range stats.Attempts {
		acc.Add(attemptSample(&stats.Attempts[i]))
	}

	return &types.WindowSummary{
		Window:    window,
		Runs:      stats.Runs,
		Requested: stats.Requested,
		Summary:   acc.Summary(),
	}, nil
}

// GetRun returns a run with its attempts. Returns nil, nil when not found.
func (s *Service) GetRun(ctx context.Context, id string) (*storage.RunDetail, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, nil
	}
	attempts, err := s.store.GetAttempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	return &storage.RunDetail{Run: *run, Attempts: attempts}, nil
}

// ListRuns proxies to storage with runner-level validation.
func (s *Service) ListRuns(ctx context.Context, status types.RunStatus, limit int) ([]storage.Run, error) {
	switch status {
	case "", types.RunStatusRunning, types.RunStatusCompleted, types.RunStatusFailed:
	default:
		return nil, validationErrorf("unknown status %q", status)
	}
	if limit < 0 {
		return nil, validationErrorf("limit must not be negative")
	}
	return s.store.ListRuns(ctx, status, limit)
}

// TipPreview fetches the Gateway's tip instructions for the configured
// wallet at the given tier.
func (s *Service) TipPreview(ctx context.Context, tier types.TipTier) ([]gateway.EncodedInstruction, error) {
	switch tier {
	case types.TipTierLow, types.TipTierMedium, types.TipTierHigh, types.TipTierMax:
	case "":
		tier = s.tipTier
	default:
		return nil, validationErrorf("unknown tip tier %q", tier)
	}
	return s.gw.TipInstructions(ctx, s.signer.PublicKey(), tier)
}

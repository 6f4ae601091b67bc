package runner

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/gatewaylab/gwbench/internal/chainrpc"
	"github.com/gatewaylab/gwbench/internal/gateway"
	"github.com/gatewaylab/gwbench/internal/storage"
	"github.com/gatewaylab/gwbench/internal/txbuilder"
	"github.com/gatewaylab/gwbench/internal/wallet"
	"github.com/gatewaylab/gwbench/pkg/types"
)

// fakeGateway scripts per-submission outcomes. A nil error list means every
// submission succeeds.
type fakeGateway struct {
	mu         sync.Mutex
	submits    int
	submitErrs map[int]error // 1-based submission index -> error
}

func (f *fakeGateway) BuildTransaction(ctx context.Context, tx *solana.Transaction, opts gateway.BuildOptions) (*gateway.BuildResult, error) {
	tx.Message.RecentBlockhash = solana.Hash{9}
	return &gateway.BuildResult{Transaction: tx, FeeLamports: 5000}, nil
}

func (f *fakeGateway) TipInstructions(ctx context.Context, feePayer solana.PublicKey, tier types.TipTier) ([]gateway.EncodedInstruction, error) {
	return []gateway.EncodedInstruction{{ProgramID: solana.SystemProgramID.String()}}, nil
}

func (f *fakeGateway) Submit(ctx context.Context, tx *solana.Transaction) (*gateway.SubmitResult, error) {
	f.mu.Lock()
	f.submits++
	n := f.submits
	f.mu.Unlock()
	if err, ok := f.submitErrs[n]; ok {
		return nil, err
	}
	return &gateway.SubmitResult{
		Signature:         "sig",
		FeeLamports:       6000,
		TipRefundLamports: 100,
		Route:             "rpc",
	}, nil
}

type fakeChain struct {
	err           error
	blockhashWait time.Duration
}

func (f *fakeChain) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	return nil, f.err
}
func (f *fakeChain) GetHealth(ctx context.Context) error { return f.err }
func (f *fakeChain) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if f.blockhashWait > 0 {
		time.Sleep(f.blockhashWait)
	}
	return solana.Hash{1}, f.err
}
func (f *fakeChain) URL() string { return "fake://chain" }

type fakePicker struct {
	client chainrpc.Client
	err    error
}

func (f *fakePicker) Pick(ctx context.Context) (chainrpc.Client, error) {
	return f.client, f.err
}

type captureHub struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (h *captureHub) Publish(event types.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *captureHub) all() []types.ProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ProgressEvent(nil), h.events...)
}

type testEnv struct {
	svc   *Service
	store storage.Storage
	hub   *captureHub
	gw    *fakeGateway
}

func newTestEnv(t *testing.T, gw *fakeGateway, picker EndpointPicker) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	signer, err := wallet.NewEphemeral()
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	hub := &captureHub{}
	svc := New(store, gw, picker, txbuilder.NewDefaultRegistry(), signer, hub, nil, Config{
		AttemptDelay:     time.Millisecond,
		DefaultRecipient: solana.NewWallet().PublicKey(),
	}, nil)
	return &testEnv{svc: svc, store: store, hub: hub, gw: gw}
}

func startAndWait(t *testing.T, env *testEnv, req types.StartRunRequest) *storage.Run {
	t.Helper()
	run, err := env.svc.StartRun(context.Background(), req)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	env.svc.Wait()
	return run
}

func TestRunAllSuccess(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 5})

	got, err := env.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != types.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Successes != 5 || got.Failures != 0 {
		t.Errorf("successes/failures = %d/%d, want 5/0", got.Successes, got.Failures)
	}
	if got.Summary == nil {
		t.Fatal("completed run has no summary")
	}
	if got.Summary.SuccessRate != 100.0 {
		t.Errorf("success rate = %v, want 100", got.Summary.SuccessRate)
	}
	if got.Summary.TotalCostLamports != 5*6000 {
		t.Errorf("total cost = %d, want 30000", got.Summary.TotalCostLamports)
	}
	if got.Summary.TotalTipRefunded != 5*100 {
		t.Errorf("tip refunded = %d, want 500", got.Summary.TotalTipRefunded)
	}

	attempts, err := env.store.GetAttempts(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetAttempts: %v", err)
	}
	if len(attempts) != 5 {
		t.Fatalf("got %d attempts, want 5", len(attempts))
	}
	for _, a := range attempts {
		if a.Status != types.AttemptSuccess || a.Signature != "sig" || a.Route != "rpc" {
			t.Errorf("attempt = %+v", a)
		}
	}
}

func TestRunWithFailedSubmission(t *testing.T) {
	gw := &fakeGateway{submitErrs: map[int]error{2: errors.New("blockhash expired")}}
	env := newTestEnv(t, gw, &fakePicker{client: &fakeChain{}})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 3})

	got, err := env.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	// A failed attempt does not fail the run; it lowers the success rate.
	if got.Status != types.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Successes != 2 || got.Failures != 1 {
		t.Errorf("successes/failures = %d/%d, want 2/1", got.Successes, got.Failures)
	}
	if got.Summary.SuccessRate != 66.7 {
		t.Errorf("success rate = %v, want 66.7", got.Summary.SuccessRate)
	}

	attempts, _ := env.store.GetAttempts(context.Background(), run.ID)
	if len(attempts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(attempts))
	}
	if attempts[1].Status != types.AttemptFailed || attempts[1].ErrorMessage == "" {
		t.Errorf("second attempt = %+v, want failed with error message", attempts[1])
	}
}

func TestRunAbortsWhenNoEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{err: errors.New("all endpoints down")})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 3})

	got, err := env.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != types.RunStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("failed run has no error message")
	}

	attempts, _ := env.store.GetAttempts(context.Background(), run.ID)
	if len(attempts) != 0 {
		t.Errorf("got %d attempts, want 0", len(attempts))
	}
}

func TestAttemptLatencyExcludesBlockhashFetch(t *testing.T) {
	// The blockhash fetch is setup, not part of the measured submit path;
	// a slow RPC endpoint must not inflate attempt latency.
	chain := &fakeChain{blockhashWait: 200 * time.Millisecond}
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: chain})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 1})

	attempts, err := env.store.GetAttempts(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetAttempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(attempts))
	}
	if attempts[0].LatencyMs >= 100 {
		t.Errorf("latency = %dms, should not include the 200ms blockhash fetch", attempts[0].LatencyMs)
	}

	got, err := env.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Summary.AvgLatencyMs >= 100 {
		t.Errorf("avg latency = %vms, should not include the 200ms blockhash fetch", got.Summary.AvgLatencyMs)
	}
}

func TestProgressEvents(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 2})

	events := env.hub.all()
	// run_start, two progress events, run_terminal
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].Kind != types.EventStart || events[0].RunID != run.ID {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != types.EventProgress || events[1].Completed != 1 {
		t.Errorf("second event = %+v", events[1])
	}
	last := events[len(events)-1]
	if last.Kind != types.EventTerminal || last.Status != types.RunStatusCompleted || last.Summary == nil {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestStartRunValidation(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})

	tests := []struct {
		name string
		req  types.StartRunRequest
	}{
		{"unknown scenario", types.StartRunRequest{Scenario: "teleport"}},
		{"count too high", types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: types.MaxRunCount + 1}},
		{"count negative", types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: -1}},
		{"bad recipient", types.StartRunRequest{Scenario: types.ScenarioTransfer, Recipient: "not-an-address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.StartRun(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}

	// Validation failures must leave no runs behind.
	runs, err := env.store.ListRuns(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs after rejected requests, want 0", len(runs))
	}
}

func TestStartRunAppliesScenarioDefaults(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioMint})

	defaults, err := txbuilder.NewDefaultRegistry().Get(types.ScenarioMint)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Requested != defaults.Defaults().DefaultCount {
		t.Errorf("requested = %d, want scenario default %d", run.Requested, defaults.Defaults().DefaultCount)
	}
	if run.AmountLamports != defaults.Defaults().DefaultAmount {
		t.Errorf("amount = %d, want scenario default %d", run.AmountLamports, defaults.Defaults().DefaultAmount)
	}
}

func TestAggregate(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 2})
	startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioPayment, Count: 3})

	agg, err := env.svc.Aggregate(context.Background(), types.Window24h)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.Runs != 2 {
		t.Errorf("runs = %d, want 2", agg.Runs)
	}
	if agg.Requested != 5 {
		t.Errorf("requested = %d, want 5", agg.Requested)
	}
	if agg.Summary.SuccessRate != 100.0 {
		t.Errorf("success rate = %v, want 100", agg.Summary.SuccessRate)
	}
	if agg.Summary.TotalCostLamports != 5*6000 {
		t.Errorf("total cost = %d, want 30000", agg.Summary.TotalCostLamports)
	}
}

func TestAggregateUnknownWindow(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	_, err := env.svc.Aggregate(context.Background(), "90d")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestGetRunDetail(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	run := startAndWait(t, env, types.StartRunRequest{Scenario: types.ScenarioTransfer, Count: 2})

	detail, err := env.svc.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if detail == nil || len(detail.Attempts) != 2 {
		t.Fatalf("detail = %+v, want 2 attempts", detail)
	}

	missing, err := env.svc.GetRun(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRun missing: %v", err)
	}
	if missing != nil {
		t.Errorf("got %+v for missing run, want nil", missing)
	}
}

func TestListRunsValidation(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})
	if _, err := env.svc.ListRuns(context.Background(), "paused", 0); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := env.svc.ListRuns(context.Background(), "", -1); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestTipPreview(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, &fakePicker{client: &fakeChain{}})

	instrs, err := env.svc.TipPreview(context.Background(), types.TipTierHigh)
	if err != nil {
		t.Fatalf("TipPreview: %v", err)
	}
	if len(instrs) != 1 {
		t.Errorf("got %d instructions, want 1", len(instrs))
	}

	if _, err := env.svc.TipPreview(context.Background(), "extreme"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

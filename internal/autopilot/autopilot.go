// Package autopilot starts benchmark runs on a fixed schedule, keeping the
// dashboard populated without manual traffic.
package autopilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gatewaylab/gwbench/internal/storage"
	"github.com/gatewaylab/gwbench/pkg/types"
)

// DefaultInterval spaces scheduled runs far enough apart that consecutive
// runs never overlap at default scenario sizes.
const DefaultInterval = 10 * time.Minute

// RunStarter is the slice of the runner the autopilot needs.
type RunStarter interface {
	StartRun(ctx context.Context, req types.StartRunRequest) (*storage.Run, error)
}

// Config holds autopilot tuning.
type Config struct {
	Scenario types.Scenario // scenario for scheduled runs
	Count    int            // 0 = scenario default
	Interval time.Duration  // 0 = DefaultInterval
}

// Service runs the schedule. Start and Stop are safe for concurrent use.
type Service struct {
	runner   RunStarter
	logger   *slog.Logger
	scenario types.Scenario
	count    int
	interval time.Duration

	mu          sync.Mutex
	cancel      context.CancelFunc
	runsStarted int
	lastRunID   string
	lastError   string
}

// New creates an autopilot service. It does not start the schedule.
func New(runner RunStarter, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	scenario := cfg.Scenario
	if scenario == "" {
		scenario = types.ScenarioTransfer
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Service{
		runner:   runner,
		logger:   logger,
		scenario: scenario,
		count:    cfg.Count,
		interval: interval,
	}
}

// Start begins the schedule. The first run starts after one interval, not
// immediately, so enabling autopilot is cheap to undo.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("autopilot already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx)

	s.logger.Info("autopilot started",
		slog.String("scenario", string(s.scenario)),
		slog.Duration("interval", s.interval),
	)
	return nil
}

// Stop halts the schedule. Returns false if it was not running. A run
// already started is not interrupted.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.logger.Info("autopilot stopped")
	return true
}

// Status reports the current autopilot state.
func (s *Service) Status() types.AutopilotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.AutopilotStatus{
		Enabled:     s.cancel != nil,
		Scenario:    s.scenario,
		IntervalSec: int(s.interval.Seconds()),
		RunsStarted: s.runsStarted,
		LastRunID:   s.lastRunID,
		LastError:   s.lastError,
	}
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	run, err := s.runner.StartRun(ctx, types.StartRunRequest{
		Name:     "autopilot",
		Scenario: s.scenario,
		Count:    s.count,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
		s.logger.Error("autopilot run failed to start", slog.String("error", err.Error()))
		return
	}
	s.runsStarted++
	s.lastRunID = run.ID
	s.lastError = ""
	s.logger.Info("autopilot run started", slog.String("runID", run.ID))
}

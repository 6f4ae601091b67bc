// Package transport provides HTTP API handlers.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewaylab/gwbench/internal/gateway"
	"github.com/gatewaylab/gwbench/internal/runner"
	"github.com/gatewaylab/gwbench/internal/storage"
	"github.com/gatewaylab/gwbench/pkg/types"
)

const defaultListLimit = 50

// BenchmarkAPI defines the interface the handlers need from the runner.
type BenchmarkAPI interface {
	StartRun(ctx context.Context, req types.StartRunRequest) (*storage.Run, error)
	GetRun(ctx context.Context, id string) (*storage.RunDetail, error)
	ListRuns(ctx context.Context, status types.RunStatus, limit int) ([]storage.Run, error)
	Aggregate(ctx context.Context, window types.Window) (*types.WindowSummary, error)
	Scenarios() []types.ScenarioDefaults
	TipPreview(ctx context.Context, tier types.TipTier) ([]gateway.EncodedInstruction, error)
}

// Autopilot defines the interface for the scheduled-run service.
type Autopilot interface {
	Start() error
	Stop() bool
	Status() types.AutopilotStatus
}

// HealthChecker defines the interface for readiness checking.
type HealthChecker interface {
	CheckGateway(ctx context.Context) error
	CheckChainRPC(ctx context.Context) error
}

// Server handles HTTP requests for the benchmark service.
type Server struct {
	api       BenchmarkAPI
	autopilot Autopilot
	health    HealthChecker
	hub       *Hub
	logger    *slog.Logger
	startTime time.Time

	// CORS configuration
	corsAllowedOrigins []string
	corsAllowAll       bool

	gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server.
func NewServer(api BenchmarkAPI, autopilot Autopilot, health HealthChecker, hub *Hub, logger *slog.Logger, corsAllowedOrigins string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		api:       api,
		autopilot: autopilot,
		health:    health,
		hub:       hub,
		logger:    logger,
		startTime: time.Now(),
	}

	origins := strings.TrimSpace(corsAllowedOrigins)
	if origins == "" || origins == "*" {
		s.corsAllowAll = true
	} else {
		s.corsAllowedOrigins = strings.Split(origins, ",")
		for i, o := range s.corsAllowedOrigins {
			s.corsAllowedOrigins[i] = strings.TrimSpace(o)
		}
	}

	return s
}

// MetricsRegistry serves /metrics from the given registry instead of the
// process-global default.
func (s *Server) MetricsRegistry(g prometheus.Gatherer) {
	s.gatherer = g
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/runs", s.corsMiddleware(s.handleRuns))
	mux.HandleFunc("/v1/runs/", s.corsMiddleware(s.handleRunDetail))
	mux.HandleFunc("/v1/aggregate", s.corsMiddleware(s.handleAggregate))
	mux.HandleFunc("/v1/scenarios", s.corsMiddleware(s.handleScenarios))
	mux.HandleFunc("/v1/tip-preview", s.corsMiddleware(s.handleTipPreview))
	mux.HandleFunc("/v1/autopilot", s.corsMiddleware(s.handleAutopilotStatus))
	mux.HandleFunc("/v1/autopilot/start", s.corsMiddleware(s.handleAutopilotStart))
	mux.HandleFunc("/v1/autopilot/stop", s.corsMiddleware(s.handleAutopilotStop))
	mux.HandleFunc("/v1/ws", s.hub.Handler())

	// Health endpoints (unversioned - standard Kubernetes probes)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	// Prometheus metrics (unversioned - standard path)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}

// corsMiddleware adds CORS headers based on the configured allowed origins.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.corsAllowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, o := range s.corsAllowedOrigins {
				if o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeAPIError maps runner errors to status codes: validation failures are
// the caller's fault, everything else is ours.
func (s *Server) writeAPIError(w http.ResponseWriter, err error) {
	var verr *runner.ValidationError
	if errors.As(err, &verr) {
		s.writeJSONError(w, verr.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Error("request failed", slog.String("error", err.Error()))
	s.writeJSONError(w, err.Error(), http.StatusInternalServerError)
}

// handleRuns serves GET /v1/runs (list) and POST /v1/runs (start).
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRuns(w, r)
	case http.MethodPost:
		s.handleStartRun(w, r)
	default:
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req types.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	run, err := s.api.StartRun(r.Context(), req)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	status := types.RunStatus(r.URL.Query().Get("status"))

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 500 {
			s.writeJSONError(w, "limit must be an integer in [1,500]", http.StatusBadRequest)
			return
		}
		limit = l
	}

	runs, err := s.api.ListRuns(r.Context(), status, limit)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleRunDetail serves GET /v1/runs/{id}.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, "Missing run ID", http.StatusBadRequest)
		return
	}

	detail, err := s.api.GetRun(r.Context(), id)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	if detail == nil {
		s.writeJSONError(w, "Run not found: "+id, http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, detail)
}

// handleAggregate serves GET /v1/aggregate?window=24h.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	window := types.Window(r.URL.Query().Get("window"))
	if window == "" {
		window = types.Window24h
	}

	summary, err := s.api.Aggregate(r.Context(), window)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

// handleScenarios serves GET /v1/scenarios.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": s.api.Scenarios(),
	})
}

// handleTipPreview serves GET /v1/tip-preview?tier=high.
func (s *Server) handleTipPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tier := types.TipTier(r.URL.Query().Get("tier"))
	instrs, err := s.api.TipPreview(r.Context(), tier)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instructions": instrs,
	})
}

func (s *Server) handleAutopilotStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.autopilot.Status())
}

func (s *Server) handleAutopilotStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.autopilot.Start(); err != nil {
		s.writeAPIError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.autopilot.Status())
}

func (s *Server) handleAutopilotStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.autopilot.Stop()
	s.writeJSON(w, http.StatusOK, s.autopilot.Status())
}

// handleHealth is the liveness probe: the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(s.startTime).Seconds()),
	})
}

// handleReady is the readiness probe: dependencies answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	start := time.Now()
	if err := s.health.CheckGateway(ctx); err != nil {
		checks["gateway"] = err.Error()
		ready = false
	} else {
		checks["gateway"] = "ok"
	}
	gatewayMs := time.Since(start).Milliseconds()

	start = time.Now()
	if err := s.health.CheckChainRPC(ctx); err != nil {
		checks["chainRpc"] = err.Error()
		ready = false
	} else {
		checks["chainRpc"] = "ok"
	}
	chainMs := time.Since(start).Milliseconds()

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]interface{}{
		"ready": ready,
		"checks": map[string]interface{}{
			"gateway":  map[string]interface{}{"status": checks["gateway"], "latencyMs": gatewayMs},
			"chainRpc": map[string]interface{}{"status": checks["chainRpc"], "latencyMs": chainMs},
		},
	})
}

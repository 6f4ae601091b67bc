// Gateway benchmark service.
// Runs scripted Solana benchmark scenarios through the transaction Gateway
// and serves results over a REST and WebSocket API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatewaylab/gwbench/internal/autopilot"
	"github.com/gatewaylab/gwbench/internal/chainrpc"
	"github.com/gatewaylab/gwbench/internal/config"
	"github.com/gatewaylab/gwbench/internal/gateway"
	"github.com/gatewaylab/gwbench/internal/metrics"
	"github.com/gatewaylab/gwbench/internal/runner"
	"github.com/gatewaylab/gwbench/internal/storage"
	"github.com/gatewaylab/gwbench/internal/transport"
	"github.com/gatewaylab/gwbench/internal/txbuilder"
	"github.com/gatewaylab/gwbench/internal/wallet"
	"github.com/gatewaylab/gwbench/pkg/types"

	"github.com/gagliardetto/solana-go"
)

const shutdownTimeout = 10 * time.Second

// healthChecker probes the service's two upstreams for the readiness endpoint.
type healthChecker struct {
	gw     gateway.Client
	signer *wallet.Signer
	prober *chainrpc.Prober
}

func (h *healthChecker) CheckGateway(ctx context.Context) error {
	// Tip instructions are the cheapest non-mutating Gateway call.
	_, err := h.gw.TipInstructions(ctx, h.signer.PublicKey(), types.TipTierLow)
	return err
}

func (h *healthChecker) CheckChainRPC(ctx context.Context) error {
	_, err := h.prober.Pick(ctx)
	return err
}

func main() {
	// Setup logger
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("initialized storage", "path", cfg.DatabasePath)

	// Sender wallet: the configured key, or an ephemeral one for mock runs.
	var signer *wallet.Signer
	if cfg.SenderKey != "" {
		signer, err = wallet.FromBase58(cfg.SenderKey)
		if err != nil {
			logger.Error("failed to load sender key", "error", err)
			os.Exit(1)
		}
	} else {
		signer, err = wallet.NewEphemeral()
		if err != nil {
			logger.Error("failed to generate sender key", "error", err)
			os.Exit(1)
		}
		logger.Warn("no SENDER_KEY configured, using ephemeral wallet", "pubkey", signer.PublicKey())
	}

	var defaultRecipient solana.PublicKey
	if cfg.DefaultRecipient != "" {
		defaultRecipient, err = wallet.ParseAddress(cfg.DefaultRecipient)
		if err != nil {
			logger.Error("invalid default recipient", "error", err)
			os.Exit(1)
		}
	}

	// Gateway: real client with an API key, deterministic mock without one.
	var gw gateway.Client
	if cfg.UseMockGateway() {
		logger.Warn("no GATEWAY_API_KEY configured, using deterministic mock gateway", "seed", cfg.MockSeed)
		gw = gateway.NewMock(uint64(cfg.MockSeed), true)
	} else {
		gw = gateway.NewHTTPClient(gateway.ClientConfig{
			BaseURL: cfg.GatewayURL,
			APIKey:  cfg.GatewayAPIKey,
			Network: cfg.Network,
			Logger:  logger,
		})
		logger.Info("using gateway", "url", cfg.GatewayURL, "network", cfg.Network)
	}

	// Chain RPC endpoints in preference order.
	clients := make([]chainrpc.Client, 0, len(cfg.RPCEndpoints))
	for _, url := range cfg.RPCEndpoints {
		clientCfg := chainrpc.DefaultClientConfig(url)
		clientCfg.Logger = logger
		clients = append(clients, chainrpc.NewHTTPClient(clientCfg))
	}
	prober := chainrpc.NewProber(clients, logger)

	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheusMetrics(reg)

	hub := transport.NewHub(logger)

	svc := runner.New(store, gw, prober, txbuilder.NewDefaultRegistry(), signer, hub, prom, runner.Config{
		AttemptDelay:     cfg.AttemptDelay,
		TipTier:          cfg.TipTier,
		PriorityTier:     cfg.PriorityTier,
		DefaultRecipient: defaultRecipient,
	}, logger)

	pilot := autopilot.New(svc, autopilot.Config{}, logger)

	health := &healthChecker{gw: gw, signer: signer, prober: prober}
	server := transport.NewServer(svc, pilot, health, hub, logger, cfg.CORSAllowedOrigins)
	server.MetricsRegistry(reg)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("HTTP server failed", "error", err)
	}

	pilot.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}

	// Let in-flight runs reach a terminal state before closing the database.
	svc.Wait()
	hub.Stop()
}

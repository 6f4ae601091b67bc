package chainrpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Prober selects a healthy RPC endpoint from an ordered list. Endpoints are
// probed in configuration order and the first healthy one wins, so the list
// doubles as a preference order.
type Prober struct {
	clients []Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a prober over the given clients, in preference order.
func NewProber(clients []Client, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		clients: clients,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

// Pick returns the first healthy client. A run aborts before its first
// attempt when no endpoint answers.
func (p *Prober) Pick(ctx context.Context) (Client, error) {
	if len(p.clients) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}

	var lastErr error
	for _, client := range p.clients {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := client.GetHealth(probeCtx)
		cancel()
		if err == nil {
			return client, nil
		}
		lastErr = err
		p.logger.Warn("RPC endpoint unhealthy, trying next",
			slog.String("url", client.URL()),
			slog.String("error", err.Error()),
		)
	}
	return nil, fmt.Errorf("no healthy RPC endpoint: %w", lastErr)
}

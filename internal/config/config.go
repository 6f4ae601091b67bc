// Package config handles configuration loading and validation.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// Config holds benchmark service configuration.
type Config struct {
	GatewayURL         string // Base URL of the transaction gateway API
	GatewayAPIKey      string // API key; when empty the service runs against the built-in mock
	Network            types.Network
	RPCEndpoints       []string // Solana RPC endpoints in preference order
	SenderKey          string   // Base58 private key of the funding wallet (empty = ephemeral)
	DefaultRecipient   string   // Default transfer recipient address
	DatabasePath       string   // Path to SQLite database file
	ListenAddr         string
	CORSAllowedOrigins string // Comma-separated list of allowed origins, or "*" for all
	AttemptDelay       time.Duration
	TipTier            types.TipTier
	PriorityTier       types.PriorityTier
	MockSeed           int64 // Seed for the deterministic mock gateway
}

// Defaults
const (
	DefaultGatewayURL         = "https://tx.sanctum.so"
	DefaultNetwork            = types.NetworkMainnet
	DefaultRPCEndpoints       = "https://api.mainnet-beta.solana.com"
	DefaultDatabasePath       = "./data/gwbench.db"
	DefaultListenAddr         = ":3001"
	DefaultCORSAllowedOrigins = "*"
	DefaultAttemptDelayMS     = 1000
	DefaultMockSeed           = 1
)

// Load reads configuration from environment variables and command-line flags.
// Command-line flags take precedence over environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		GatewayURL:         DefaultGatewayURL,
		Network:            DefaultNetwork,
		RPCEndpoints:       splitList(DefaultRPCEndpoints),
		DatabasePath:       DefaultDatabasePath,
		ListenAddr:         DefaultListenAddr,
		CORSAllowedOrigins: DefaultCORSAllowedOrigins,
		AttemptDelay:       DefaultAttemptDelayMS * time.Millisecond,
		TipTier:            types.TipTierMedium,
		PriorityTier:       types.PriorityTierMedium,
		MockSeed:           DefaultMockSeed,
	}

	// Load from environment variables first
	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.GatewayURL = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.GatewayAPIKey = v
	}
	if v := os.Getenv("GATEWAY_NETWORK"); v != "" {
		cfg.Network = types.Network(v)
	}
	if v := os.Getenv("RPC_ENDPOINTS"); v != "" {
		cfg.RPCEndpoints = splitList(v)
	}
	if v := os.Getenv("SENDER_KEY"); v != "" {
		cfg.SenderKey = v
	}
	if v := os.Getenv("DEFAULT_RECIPIENT"); v != "" {
		cfg.DefaultRecipient = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = v
	}
	if v := os.Getenv("ATTEMPT_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.AttemptDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("TIP_TIER"); v != "" {
		cfg.TipTier = types.TipTier(v)
	}
	if v := os.Getenv("PRIORITY_TIER"); v != "" {
		cfg.PriorityTier = types.PriorityTier(v)
	}
	if v := os.Getenv("MOCK_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil && seed > 0 {
			cfg.MockSeed = seed
		}
	}

	// Define command-line flags
	var (
		gatewayURL = flag.String("gateway", cfg.GatewayURL, "Transaction gateway base URL")
		apiKey     = flag.String("api-key", cfg.GatewayAPIKey, "Gateway API key (empty = mock gateway)")
		network    = flag.String("network", string(cfg.Network), "Solana network (mainnet, devnet)")
		rpcList    = flag.String("rpc", strings.Join(cfg.RPCEndpoints, ","), "Comma-separated Solana RPC endpoints")
		listenAddr = flag.String("listen", cfg.ListenAddr, "HTTP listen address")
		dbPath     = flag.String("db", cfg.DatabasePath, "SQLite database path")
		delayMS    = flag.Int("delay-ms", int(cfg.AttemptDelay/time.Millisecond), "Delay between attempts in milliseconds")
		tipTier    = flag.String("tip-tier", string(cfg.TipTier), "Delivery tip tier (low, medium, high, max)")
	)

	flag.Parse()

	// Apply flags to config
	cfg.GatewayURL = *gatewayURL
	cfg.GatewayAPIKey = *apiKey
	cfg.Network = types.Network(*network)
	cfg.RPCEndpoints = splitList(*rpcList)
	cfg.ListenAddr = *listenAddr
	cfg.DatabasePath = *dbPath
	if *delayMS >= 0 {
		cfg.AttemptDelay = time.Duration(*delayMS) * time.Millisecond
	}
	cfg.TipTier = types.TipTier(*tipTier)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UseMockGateway reports whether the service should run against the
// deterministic mock instead of the real gateway.
func (c *Config) UseMockGateway() bool {
	return c.GatewayAPIKey == ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("gateway URL is required")
	}
	switch c.Network {
	case types.NetworkMainnet, types.NetworkDevnet:
	default:
		return fmt.Errorf("unknown network: %s (supported: mainnet, devnet)", c.Network)
	}
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if !c.TipTier.Valid() {
		return fmt.Errorf("invalid tip tier: %s", c.TipTier)
	}
	if !c.PriorityTier.Valid() {
		return fmt.Errorf("invalid priority tier: %s", c.PriorityTier)
	}
	if c.AttemptDelay < 0 {
		return fmt.Errorf("attempt delay cannot be negative")
	}
	return nil
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/gatewaylab/gwbench/pkg/types"
)

func validConfig() *Config {
	return &Config{
		GatewayURL:         DefaultGatewayURL,
		Network:            types.NetworkMainnet,
		RPCEndpoints:       []string{"https://api.mainnet-beta.solana.com"},
		DatabasePath:       DefaultDatabasePath,
		ListenAddr:         DefaultListenAddr,
		CORSAllowedOrigins: DefaultCORSAllowedOrigins,
		AttemptDelay:       time.Second,
		TipTier:            types.TipTierMedium,
		PriorityTier:       types.PriorityTierMedium,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing gateway URL", func(c *Config) { c.GatewayURL = "" }, "gateway URL"},
		{"unknown network", func(c *Config) { c.Network = "testnet" }, "unknown network"},
		{"no RPC endpoints", func(c *Config) { c.RPCEndpoints = nil }, "RPC endpoint"},
		{"missing database path", func(c *Config) { c.DatabasePath = "" }, "database path"},
		{"missing listen address", func(c *Config) { c.ListenAddr = "" }, "listen address"},
		{"invalid tip tier", func(c *Config) { c.TipTier = "turbo" }, "tip tier"},
		{"invalid priority tier", func(c *Config) { c.PriorityTier = "max" }, "priority tier"},
		{"negative delay", func(c *Config) { c.AttemptDelay = -time.Second }, "attempt delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDevnet(t *testing.T) {
	cfg := validConfig()
	cfg.Network = types.NetworkDevnet
	if err := cfg.Validate(); err != nil {
		t.Fatalf("devnet rejected: %v", err)
	}
}

func TestUseMockGateway(t *testing.T) {
	cfg := validConfig()
	if !cfg.UseMockGateway() {
		t.Error("expected mock gateway when API key is empty")
	}
	cfg.GatewayAPIKey = "key"
	if cfg.UseMockGateway() {
		t.Error("expected real gateway when API key is set")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b", []string{"a", "b"}},
		{"", nil},
		{"  ,  ", nil},
	}

	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

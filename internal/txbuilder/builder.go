// Package txbuilder provides transaction building for the benchmark scenarios.
package txbuilder

import (
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	ptypes "github.com/gatewaylab/gwbench/pkg/types"
)

// Params holds parameters for building a scenario's instructions.
type Params struct {
	Sender         solana.PublicKey
	Recipient      solana.PublicKey
	AmountLamports uint64
}

// Builder builds the instruction list for one scenario.
type Builder interface {
	// Scenario returns the scenario identifier.
	Scenario() ptypes.Scenario

	// Defaults returns the preset parameters used when a request omits them.
	Defaults() ptypes.ScenarioDefaults

	// Build creates the scenario's instructions.
	Build(params Params) ([]solana.Instruction, error)
}

// Registry manages builder lookup by scenario.
type Registry struct {
	builders map[ptypes.Scenario]Builder
}

// NewRegistry creates an empty builder registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[ptypes.Scenario]Builder),
	}
}

// Register adds a builder to the registry.
func (r *Registry) Register(builder Builder) {
	r.builders[builder.Scenario()] = builder
}

// Get returns the builder for the given scenario.
func (r *Registry) Get(scenario ptypes.Scenario) (Builder, error) {
	builder, ok := r.builders[scenario]
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s", scenario)
	}
	return builder, nil
}

// Scenarios returns the defaults of all registered builders, sorted by
// scenario name for stable API output.
func (r *Registry) Scenarios() []ptypes.ScenarioDefaults {
	out := make([]ptypes.ScenarioDefaults, 0, len(r.builders))
	for _, b := range r.builders {
		out = append(out, b.Defaults())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scenario < out[j].Scenario
	})
	return out
}

// NewDefaultRegistry creates a registry with all standard scenarios. Every
// preset is a SOL transfer under the hood; the presets model common traffic
// shapes with different counts and amounts.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(newTransferBuilder(ptypes.ScenarioTransfer, "SOL transfer", 10, 5_000))
	r.Register(newTransferBuilder(ptypes.ScenarioAirdrop, "Airdrop batch", 25, 1_000))
	r.Register(newTransferBuilder(ptypes.ScenarioSwap, "Swap-sized transfer", 10, 50_000))
	r.Register(newTransferBuilder(ptypes.ScenarioMint, "Mint-sized transfer", 5, 10_000))
	r.Register(newTransferBuilder(ptypes.ScenarioPayment, "Payment", 10, 100_000))

	return r
}

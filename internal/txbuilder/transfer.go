package txbuilder

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	ptypes "github.com/gatewaylab/gwbench/pkg/types"
)

// transferBuilder builds a single system-program transfer. All current
// scenarios share this implementation and differ only in their defaults.
type transferBuilder struct {
	defaults ptypes.ScenarioDefaults
}

func newTransferBuilder(scenario ptypes.Scenario, name string, count int, amount uint64) *transferBuilder {
	return &transferBuilder{
		defaults: ptypes.ScenarioDefaults{
			Scenario:      scenario,
			DisplayName:   name,
			DefaultCount:  count,
			DefaultAmount: amount,
		},
	}
}

func (b *transferBuilder) Scenario() ptypes.Scenario {
	return b.defaults.Scenario
}

func (b *transferBuilder) Defaults() ptypes.ScenarioDefaults {
	return b.defaults
}

func (b *transferBuilder) Build(params Params) ([]solana.Instruction, error) {
	if params.Recipient.IsZero() {
		return nil, fmt.Errorf("recipient is not set")
	}
	if params.Sender.IsZero() {
		return nil, fmt.Errorf("sender is not set")
	}
	amount := params.AmountLamports
	if amount == 0 {
		amount = b.defaults.DefaultAmount
	}

	instr := system.NewTransferInstruction(amount, params.Sender, params.Recipient).Build()
	return []solana.Instruction{instr}, nil
}

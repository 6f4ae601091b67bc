package txbuilder

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	ptypes "github.com/gatewaylab/gwbench/pkg/types"
)

func TestDefaultRegistryScenarios(t *testing.T) {
	r := NewDefaultRegistry()

	want := []ptypes.Scenario{
		ptypes.ScenarioTransfer,
		ptypes.ScenarioAirdrop,
		ptypes.ScenarioSwap,
		ptypes.ScenarioMint,
		ptypes.ScenarioPayment,
	}
	for _, sc := range want {
		b, err := r.Get(sc)
		if err != nil {
			t.Errorf("Get(%s): %v", sc, err)
			continue
		}
		d := b.Defaults()
		if d.Scenario != sc {
			t.Errorf("Get(%s) returned defaults for %s", sc, d.Scenario)
		}
		if d.DefaultCount < ptypes.MinRunCount || d.DefaultCount > ptypes.MaxRunCount {
			t.Errorf("%s default count %d outside [%d,%d]", sc, d.DefaultCount, ptypes.MinRunCount, ptypes.MaxRunCount)
		}
		if d.DefaultAmount == 0 {
			t.Errorf("%s has zero default amount", sc)
		}
	}

	if got := len(r.Scenarios()); got != len(want) {
		t.Errorf("Scenarios() returned %d entries, want %d", got, len(want))
	}
}

func TestRegistryUnknownScenario(t *testing.T) {
	r := NewDefaultRegistry()
	if _, err := r.Get("teleport"); err == nil {
		t.Error("expected error for unknown scenario")
	}
}

func TestScenariosSorted(t *testing.T) {
	all := NewDefaultRegistry().Scenarios()
	for i := 1; i < len(all); i++ {
		if all[i-1].Scenario >= all[i].Scenario {
			t.Errorf("scenarios not sorted: %s before %s", all[i-1].Scenario, all[i].Scenario)
		}
	}
}

func TestTransferBuild(t *testing.T) {
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	b := newTransferBuilder(ptypes.ScenarioTransfer, "SOL transfer", 10, 5_000)

	instrs, err := b.Build(Params{Sender: sender, Recipient: recipient, AmountLamports: 42})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(instrs))
	}
	if !instrs[0].ProgramID().Equals(solana.SystemProgramID) {
		t.Errorf("program = %s, want system program", instrs[0].ProgramID())
	}
}

func TestTransferBuildDefaultsAmount(t *testing.T) {
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	b := newTransferBuilder(ptypes.ScenarioPayment, "Payment", 10, 100_000)
	if _, err := b.Build(Params{Sender: sender, Recipient: recipient}); err != nil {
		t.Fatalf("Build with zero amount: %v", err)
	}
}

func TestTransferBuildValidation(t *testing.T) {
	b := newTransferBuilder(ptypes.ScenarioTransfer, "SOL transfer", 10, 5_000)
	valid := solana.NewWallet().PublicKey()

	tests := []struct {
		name   string
		params Params
	}{
		{"zero recipient", Params{Sender: valid}},
		{"zero sender", Params{Recipient: valid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Build(tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

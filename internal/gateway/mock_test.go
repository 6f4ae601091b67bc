package gateway

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/gatewaylab/gwbench/pkg/types"
)

func mockTestTx(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet()
	instr := system.NewTransferInstruction(1000, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{instr},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	return tx
}

func TestMockBuildRefreshesBlockhash(t *testing.T) {
	m := NewMock(42, false)
	tx := mockTestTx(t)

	res, err := m.BuildTransaction(context.Background(), tx, BuildOptions{TipTier: types.TipTierMedium})
	if err != nil {
		t.Fatalf("BuildTransaction: %v", err)
	}
	if res.Transaction.Message.RecentBlockhash.IsZero() {
		t.Error("blockhash was not refreshed")
	}
	if res.FeeLamports < mockBaseFee || res.FeeLamports >= mockBaseFee+mockFeeSpan {
		t.Errorf("fee estimate %d outside [%d,%d)", res.FeeLamports, mockBaseFee, mockBaseFee+mockFeeSpan)
	}
}

func TestMockSubmitBounds(t *testing.T) {
	m := NewMock(7, false)
	routes := make(map[string]bool)

	for i := 0; i < 200; i++ {
		res, err := m.Submit(context.Background(), mockTestTx(t))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if res.Signature == "" {
			t.Fatal("empty signature")
		}
		if res.FeeLamports < mockBaseFee || res.FeeLamports >= mockBaseFee+mockFeeSpan {
			t.Errorf("fee %d outside [%d,%d)", res.FeeLamports, mockBaseFee, mockBaseFee+mockFeeSpan)
		}
		if res.TipRefundLamports > mockMaxTipRefund {
			t.Errorf("tip refund %d exceeds %d", res.TipRefundLamports, mockMaxTipRefund)
		}
		routes[res.Route] = true
	}

	for _, want := range mockRoutes {
		if !routes[want] {
			t.Errorf("route %q never selected in 200 submissions", want)
		}
	}
}

func TestMockDeterministic(t *testing.T) {
	a := NewMock(99, false)
	b := NewMock(99, false)
	for i := 0; i < 20; i++ {
		ra, err := a.Submit(context.Background(), mockTestTx(t))
		if err != nil {
			t.Fatalf("Submit a: %v", err)
		}
		rb, err := b.Submit(context.Background(), mockTestTx(t))
		if err != nil {
			t.Fatalf("Submit b: %v", err)
		}
		if *ra != *rb {
			t.Fatalf("iteration %d diverged: %+v != %+v", i, ra, rb)
		}
	}
}

func TestMockTipInstructions(t *testing.T) {
	m := NewMock(1, false)
	payer := solana.NewWallet().PublicKey()

	instrs, err := m.TipInstructions(context.Background(), payer, types.TipTierHigh)
	if err != nil {
		t.Fatalf("TipInstructions: %v", err)
	}
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(instrs))
	}
	if instrs[0].ProgramID != solana.SystemProgramID.String() {
		t.Errorf("program = %s, want system program", instrs[0].ProgramID)
	}
	if instrs[0].Accounts[0].Pubkey != payer.String() {
		t.Errorf("fee payer = %s, want %s", instrs[0].Accounts[0].Pubkey, payer)
	}
}

func TestMockContextCancelled(t *testing.T) {
	m := NewMock(1, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Submit(ctx, mockTestTx(t)); err == nil {
		t.Error("expected context error")
	}
}

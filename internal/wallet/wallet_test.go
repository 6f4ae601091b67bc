package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

func TestNewEphemeral(t *testing.T) {
	s, err := NewEphemeral()
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	if s.PublicKey().IsZero() {
		t.Error("ephemeral signer has zero public key")
	}
}

func TestFromBase58RoundTrip(t *testing.T) {
	orig, err := NewEphemeral()
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	restored, err := FromBase58(orig.key.String())
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}
	if !restored.PublicKey().Equals(orig.PublicKey()) {
		t.Errorf("restored key %s != original %s", restored.PublicKey(), orig.PublicKey())
	}
}

func TestFromBase58Invalid(t *testing.T) {
	if _, err := FromBase58("not-a-key"); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid", solana.SystemProgramID.String(), false},
		{"empty", "", true},
		{"garbage", "zzz!!", true},
		{"zero key", solana.PublicKey{}.String(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestSignTransaction(t *testing.T) {
	s, err := NewEphemeral()
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	recipient := solana.NewWallet().PublicKey()

	instr := system.NewTransferInstruction(1000, s.PublicKey(), recipient).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{instr},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(s.PublicKey()),
	)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	if err := s.SignTransaction(tx); err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if len(tx.Signatures) != 1 {
		t.Fatalf("got %d signatures, want 1", len(tx.Signatures))
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

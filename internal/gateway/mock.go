package gateway

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// Mock gateway tuning. Latency and fees are synthesized within ranges that
// resemble mainnet behavior so dashboards stay meaningful without an API key.
const (
	mockMinLatencyMs = 40
	mockLatencySpan  = 180 // latency range is [min, min+span)
	mockBaseFee      = 5000
	mockFeeSpan      = 3000
	mockMaxTipRefund = 2000
)

var mockRoutes = [...]string{"jito", "rpc", "swqos"}

// Mock implements Client without network access. Every submission succeeds
// with synthesized latency, fee, and tip refund. Output is deterministic for
// a given seed.
type Mock struct {
	mu        sync.Mutex
	randState uint64

	// Delay controls whether Submit sleeps for the synthesized latency.
	// Runs against the mock feel like real runs; tests switch it off.
	delay bool
}

// NewMock creates a mock gateway. A zero seed is replaced, the generator
// state must never be zero.
func NewMock(seed uint64, delay bool) *Mock {
	if seed == 0 {
		seed = 1
	}
	return &Mock{randState: seed, delay: delay}
}

// fastRand returns a pseudo-random uint64 using xorshift64*.
// Not cryptographically secure, but fast and reproducible.
func (m *Mock) fastRand() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.randState ^= m.randState >> 12
	m.randState ^= m.randState << 25
	m.randState ^= m.randState >> 27
	return m.randState * 0x2545F4914F6CDD1D
}

func (m *Mock) randHash() solana.Hash {
	var h solana.Hash
	for i := 0; i < len(h); i += 8 {
		binary.LittleEndian.PutUint64(h[i:], m.fastRand())
	}
	return h
}

func (m *Mock) randSignature() solana.Signature {
	var sig solana.Signature
	for i := 0; i < len(sig); i += 8 {
		binary.LittleEndian.PutUint64(sig[i:], m.fastRand())
	}
	return sig
}

// BuildTransaction refreshes the blockhash and attaches a fee estimate. The
// mock does not inject compute-budget instructions; the caller's instruction
// list passes through unchanged.
func (m *Mock) BuildTransaction(ctx context.Context, tx *solana.Transaction, opts BuildOptions) (*BuildResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.Message.RecentBlockhash = m.randHash()
	return &BuildResult{
		Transaction: tx,
		FeeLamports: mockBaseFee + m.fastRand()%mockFeeSpan,
	}, nil
}

// TipInstructions returns a single synthesized tip transfer.
func (m *Mock) TipInstructions(ctx context.Context, feePayer solana.PublicKey, tier types.TipTier) ([]EncodedInstruction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tipAccount solana.PublicKey
	for i := 0; i < len(tipAccount); i += 8 {
		binary.LittleEndian.PutUint64(tipAccount[i:], m.fastRand())
	}
	return []EncodedInstruction{{
		ProgramID: solana.SystemProgramID.String(),
		Accounts: []EncodedAccount{
			{Pubkey: feePayer.String(), IsSigner: true, IsWritable: true},
			{Pubkey: tipAccount.String(), IsWritable: true},
		},
		Data: "AgAAAICWmAAAAAAA", // transfer encoding, amount is cosmetic
	}}, nil
}

// Submit synthesizes a successful landing.
func (m *Mock) Submit(ctx context.Context, tx *solana.Transaction) (*SubmitResult, error) {
	latency := time.Duration(mockMinLatencyMs+m.fastRand()%mockLatencySpan) * time.Millisecond
	if m.delay {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(latency):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &SubmitResult{
		Signature:         m.randSignature().String(),
		FeeLamports:       mockBaseFee + m.fastRand()%mockFeeSpan,
		TipRefundLamports: m.fastRand() % (mockMaxTipRefund + 1),
		Route:             mockRoutes[m.fastRand()%uint64(len(mockRoutes))],
	}, nil
}

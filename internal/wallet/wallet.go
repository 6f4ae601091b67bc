// Package wallet manages the benchmark sender keypair and address parsing.
package wallet

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer wraps the ed25519 keypair that funds and signs benchmark
// transactions.
type Signer struct {
	key solana.PrivateKey
}

// FromBase58 loads a signer from a base58-encoded private key.
func FromBase58(encoded string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sender key: %w", err)
	}
	return &Signer{key: key}, nil
}

// NewEphemeral generates a throwaway keypair. Used with the mock gateway,
// where no real funds move.
func NewEphemeral() (*Signer, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Signer{key: key}, nil
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// SignTransaction signs tx in place with the wallet key. The transaction's
// fee payer must be this wallet.
func (s *Signer) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// ParseAddress parses a base58 Solana address, rejecting empty and all-zero
// keys.
func ParseAddress(addr string) (solana.PublicKey, error) {
	if addr == "" {
		return solana.PublicKey{}, fmt.Errorf("address is empty")
	}
	pub, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if pub.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("address %q is the zero key", addr)
	}
	return pub, nil
}

package ownership

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Registry resolves the current owner of a token from the on-chain contract.
// The owning address is authoritative and never cached beyond a single call.
type Registry interface {
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
}

// Verifier proves that a signature was produced by the address that currently
// owns a given NFT.
type Verifier struct {
	registry Registry
	logger   *slog.Logger
}

// NewVerifier creates a new ownership verifier
func NewVerifier(registry Registry, logger *slog.Logger) *Verifier {
	return &Verifier{
		registry: registry,
		logger:   logger,
	}
}

// TokenDigest returns the digest a holder signs to prove ownership of a token:
// the Ethereum signed-message hash of the keccak256 of the token id's decimal
// string form.
func TokenDigest(tokenID uint64) []byte {
	hash := crypto.Keccak256([]byte(strconv.FormatUint(tokenID, 10)))
	return accounts.TextHash(hash)
}

// Verify reports whether signature was produced by the current owner of
// tokenID. Every failure mode, from a malformed signature to a registry
// timeout, yields false: a failed proof is an expected outcome here, not an
// error. The underlying cause is logged so operators can still tell a bad
// signature from an unreachable registry.
func (v *Verifier) Verify(ctx context.Context, signature string, tokenID uint64) bool {
	signer, err := recoverSigner(signature, tokenID)
	if err != nil {
		v.logger.Debug("signature recovery failed", "nft_id", tokenID, "error", err)
		return false
	}

	owner, err := v.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		v.logger.Warn("owner lookup failed", "nft_id", tokenID, "error", err)
		return false
	}

	return signer == owner
}

// recoverSigner recovers the address that signed the token digest. Accepts the
// 65-byte [R || S || V] format with V as either 0/1 or 27/28, with or without
// a 0x prefix.
func recoverSigner(signature string, tokenID uint64) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("decoding signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature has %d bytes, want %d", len(sig), crypto.SignatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(TokenDigest(tokenID), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

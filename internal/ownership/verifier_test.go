package ownership

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	owner common.Address
	err   error
}

func (f *fakeRegistry) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	if f.err != nil {
		return common.Address{}, f.err
	}
	return f.owner, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, key *ecdsa.PrivateKey, tokenID uint64) string {
	t.Helper()
	sig, err := crypto.Sign(TokenDigest(tokenID), key)
	require.NoError(t, err)
	return hex.EncodeToString(sig)
}

func TestVerifyOwnerSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	registry := &fakeRegistry{owner: crypto.PubkeyToAddress(key.PublicKey)}
	v := NewVerifier(registry, testLogger())

	require.True(t, v.Verify(context.Background(), signToken(t, key, 22), 22))
}

func TestVerifyAcceptsWalletFormats(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	registry := &fakeRegistry{owner: crypto.PubkeyToAddress(key.PublicKey)}
	v := NewVerifier(registry, testLogger())

	raw, err := crypto.Sign(TokenDigest(7), key)
	require.NoError(t, err)

	// 0x prefix
	require.True(t, v.Verify(context.Background(), "0x"+hex.EncodeToString(raw), 7))

	// Wallets report the recovery id as 27/28
	walletSig := append([]byte(nil), raw...)
	walletSig[64] += 27
	require.True(t, v.Verify(context.Background(), "0x"+hex.EncodeToString(walletSig), 7))
}

func TestVerifyRejectsNonOwner(t *testing.T) {
	ownerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	attackerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	registry := &fakeRegistry{owner: crypto.PubkeyToAddress(ownerKey.PublicKey)}
	v := NewVerifier(registry, testLogger())

	require.False(t, v.Verify(context.Background(), signToken(t, attackerKey, 22), 22))
}

func TestVerifyRejectsSignatureForOtherToken(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	registry := &fakeRegistry{owner: crypto.PubkeyToAddress(key.PublicKey)}
	v := NewVerifier(registry, testLogger())

	// A proof for token 1 must not admit token 2, even from the real owner.
	require.False(t, v.Verify(context.Background(), signToken(t, key, 1), 2))
}

func TestVerifyMalformedSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	registry := &fakeRegistry{owner: crypto.PubkeyToAddress(key.PublicKey)}
	v := NewVerifier(registry, testLogger())

	for _, sig := range []string{
		"",
		"0x",
		"not-hex-at-all",
		"0xdeadbeef", // too short
	} {
		require.False(t, v.Verify(context.Background(), sig, 22), "signature %q", sig)
	}
}

func TestVerifyRegistryFailure(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	// An unreachable registry folds into a negative proof, not an error.
	registry := &fakeRegistry{err: errors.New("rpc timeout")}
	v := NewVerifier(registry, testLogger())

	require.False(t, v.Verify(context.Background(), signToken(t, key, 22), 22))
}

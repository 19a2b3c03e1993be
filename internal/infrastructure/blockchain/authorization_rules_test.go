package blockchain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "together.backend/internal/domain/errors"
	"together.backend/pkg/eip712"
)

const rulesTestKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type rulesFixture struct {
	rules    *AuthorizationRules
	signer   *eip712.Signer
	contract common.Address
	now      uint64
}

func newRulesFixture(t *testing.T) *rulesFixture {
	t.Helper()

	signer, err := eip712.NewSigner(rulesTestKey, 8453)
	require.NoError(t, err)

	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	now := uint64(time.Now().Unix())
	rules := NewAuthorizationRules(
		big.NewInt(8453),
		contract,
		[]common.Address{signer.Address()},
		func() uint64 { return now },
	)
	return &rulesFixture{rules: rules, signer: signer, contract: contract, now: now}
}

func (f *rulesFixture) signedCall(t *testing.T, deadline uint64) (common.Address, common.Address, uint64, [32]byte, []byte) {
	t.Helper()
	a := common.HexToAddress("0x2222222222222222222222222222222222222222")
	b := common.HexToAddress("0x3333333333333333333333333333333333333333")
	nonce, err := eip712.GenerateNonce()
	require.NoError(t, err)
	sig, err := f.signer.SignAttestation(f.contract, a, b, f.now, nonce, deadline)
	require.NoError(t, err)
	return a, b, f.now, nonce, sig
}

func TestVerifyAcceptsValidCallOnce(t *testing.T) {
	f := newRulesFixture(t)
	a, b, ts, nonce, sig := f.signedCall(t, f.now+600)

	err := f.rules.Verify(f.signer.Address(), a, b, ts, nonce, f.now+600, sig)
	require.NoError(t, err)

	// Same nonce is consumed, second call is rejected.
	err = f.rules.Verify(f.signer.Address(), a, b, ts, nonce, f.now+600, sig)
	assert.ErrorIs(t, err, domainerrors.ErrNonceUsed)
}

func TestVerifyRejectsUnknownCaller(t *testing.T) {
	f := newRulesFixture(t)
	a, b, ts, nonce, sig := f.signedCall(t, f.now+600)

	stranger := common.HexToAddress("0x9999999999999999999999999999999999999999")
	err := f.rules.Verify(stranger, a, b, ts, nonce, f.now+600, sig)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestVerifyRejectsMalformedPair(t *testing.T) {
	f := newRulesFixture(t)
	a, b, ts, nonce, sig := f.signedCall(t, f.now+600)

	err := f.rules.Verify(f.signer.Address(), a, a, ts, nonce, f.now+600, sig)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	err = f.rules.Verify(f.signer.Address(), common.Address{}, b, ts, nonce, f.now+600, sig)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	// Rejection leaves the nonce usable.
	err = f.rules.Verify(f.signer.Address(), a, b, ts, nonce, f.now+600, sig)
	assert.NoError(t, err)
}

func TestVerifyRejectsExpiredDeadline(t *testing.T) {
	f := newRulesFixture(t)
	deadline := f.now - 1
	a, b, ts, nonce, sig := f.signedCall(t, deadline)

	err := f.rules.Verify(f.signer.Address(), a, b, ts, nonce, deadline, sig)
	assert.ErrorIs(t, err, domainerrors.ErrDeadlineExpired)
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	f := newRulesFixture(t)

	other, err := eip712.NewSigner("8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f", 8453)
	require.NoError(t, err)

	a := common.HexToAddress("0x2222222222222222222222222222222222222222")
	b := common.HexToAddress("0x3333333333333333333333333333333333333333")
	nonce, err := eip712.GenerateNonce()
	require.NoError(t, err)
	sig, err := other.SignAttestation(f.contract, a, b, f.now, nonce, f.now+600)
	require.NoError(t, err)

	err = f.rules.Verify(f.signer.Address(), a, b, f.now, nonce, f.now+600, sig)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	f := newRulesFixture(t)
	a, b, ts, nonce, sig := f.signedCall(t, f.now+600)

	// Signature covers (a, b); verifying (b, a) recovers a different address.
	err := f.rules.Verify(f.signer.Address(), b, a, ts, nonce, f.now+600, sig)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestVerifyRejectionKeepsNonceUsable(t *testing.T) {
	f := newRulesFixture(t)
	a, b, ts, nonce, sig := f.signedCall(t, f.now+600)

	stranger := common.HexToAddress("0x9999999999999999999999999999999999999999")
	err := f.rules.Verify(stranger, a, b, ts, nonce, f.now+600, sig)
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	err = f.rules.Verify(f.signer.Address(), a, b, ts, nonce, f.now+600, sig)
	assert.NoError(t, err)
}

package blockchain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	domainerrors "together.backend/internal/domain/errors"
	"together.backend/pkg/eip712"
)

// AuthorizationRules models the contract-side acceptance checks for a
// together call. The submitter runs them before spending gas so a
// transaction that would revert never leaves the backend.
//
// Checks run in the contract's order: caller allow-listed, inputs
// well-formed, deadline not passed, nonce unused, recovered signer
// allow-listed. The nonce is consumed only when every check passes, so
// a rejected call can be retried with the same nonce.
type AuthorizationRules struct {
	mu          sync.Mutex
	allowed     map[common.Address]bool
	usedNonces  map[[32]byte]bool
	chainID     *big.Int
	contract    common.Address
	nowUnixFunc func() uint64
}

func NewAuthorizationRules(chainID *big.Int, contract common.Address, allowedSigners []common.Address, nowUnix func() uint64) *AuthorizationRules {
	allowed := make(map[common.Address]bool, len(allowedSigners))
	for _, a := range allowedSigners {
		allowed[a] = true
	}
	return &AuthorizationRules{
		allowed:     allowed,
		usedNonces:  make(map[[32]byte]bool),
		chainID:     chainID,
		contract:    contract,
		nowUnixFunc: nowUnix,
	}
}

// Verify applies the acceptance checks to a prospective call and, on
// success, consumes the nonce.
func (r *AuthorizationRules) Verify(caller, onBehalfOf, togetherWith common.Address, timestamp uint64, nonce [32]byte, deadline uint64, signature []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allowed[caller] {
		return domainerrors.ErrUnauthorized
	}
	if onBehalfOf == (common.Address{}) || togetherWith == (common.Address{}) || onBehalfOf == togetherWith {
		return domainerrors.ErrInvalidInput
	}
	if r.nowUnixFunc() > deadline {
		return domainerrors.ErrDeadlineExpired
	}
	if r.usedNonces[nonce] {
		return domainerrors.ErrNonceUsed
	}

	digest := eip712.AttestationDigest(r.chainID, r.contract, onBehalfOf, togetherWith, timestamp, nonce, deadline)
	signer, err := eip712.RecoverSigner(digest, signature)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	if !r.allowed[signer] {
		return domainerrors.ErrUnauthorized
	}

	r.usedNonces[nonce] = true
	return nil
}

package usecases

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"together.backend/internal/config"
	domainerrors "together.backend/internal/domain/errors"
	"together.backend/internal/infrastructure/blockchain"
	"together.backend/pkg/eip712"
)

type txBroadcaster interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// AttestationSubmitterUsecase signs and broadcasts together calls for
// freshly matched pairs. It returns as soon as the transaction is
// accepted by the RPC; confirmation is the watcher's job, and a lost
// transaction just leaves the optimistic connection unconfirmed.
type AttestationSubmitterUsecase struct {
	client   txBroadcaster
	contract *blockchain.TogetherContract
	signer   *eip712.Signer
	rules    *blockchain.AuthorizationRules
	cfg      config.ChainConfig
}

func NewAttestationSubmitterUsecase(
	client txBroadcaster,
	contract *blockchain.TogetherContract,
	signer *eip712.Signer,
	rules *blockchain.AuthorizationRules,
	cfg config.ChainConfig,
) *AttestationSubmitterUsecase {
	return &AttestationSubmitterUsecase{
		client:   client,
		contract: contract,
		signer:   signer,
		rules:    rules,
		cfg:      cfg,
	}
}

// Submit authorizes and broadcasts one attestation. Each call draws a
// fresh nonce, so a retry after failure produces a new authorization
// rather than tripping the contract's replay protection.
func (u *AttestationSubmitterUsecase) Submit(ctx context.Context, addressA, addressB string, matchedAt time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.SubmitTimeout)
	defer cancel()

	onBehalfOf := common.HexToAddress(addressA)
	togetherWith := common.HexToAddress(addressB)
	timestamp := uint64(matchedAt.Unix())

	nonce, err := eip712.GenerateNonce()
	if err != nil {
		return "", fmt.Errorf("%w: generate nonce: %v", domainerrors.ErrSubmissionFailed, err)
	}
	deadline := eip712.DeadlineAfter(u.cfg.SignatureDeadline)

	signature, err := u.signer.SignAttestation(u.contract.Address(), onBehalfOf, togetherWith, timestamp, nonce, deadline)
	if err != nil {
		return "", fmt.Errorf("%w: sign authorization: %v", domainerrors.ErrSubmissionFailed, err)
	}

	// Pre-flight through the contract's own acceptance checks; a call
	// that would revert never spends gas.
	if err := u.rules.Verify(u.signer.Address(), onBehalfOf, togetherWith, timestamp, nonce, deadline, signature); err != nil {
		return "", fmt.Errorf("%w: preflight authorization: %v", domainerrors.ErrSubmissionFailed, err)
	}

	callData, err := u.contract.PackTogether(onBehalfOf, togetherWith, timestamp, nonce, deadline, signature)
	if err != nil {
		return "", fmt.Errorf("%w: pack call: %v", domainerrors.ErrSubmissionFailed, err)
	}

	accountNonce, err := u.client.PendingNonceAt(ctx, u.signer.Address())
	if err != nil {
		return "", fmt.Errorf("%w: fetch account nonce: %v", domainerrors.ErrSubmissionFailed, err)
	}
	gasPrice, err := u.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: fetch gas price: %v", domainerrors.ErrSubmissionFailed, err)
	}

	to := u.contract.Address()
	gasLimit, err := u.client.EstimateGas(ctx, ethereum.CallMsg{
		From: u.signer.Address(),
		To:   &to,
		Data: callData,
	})
	if err != nil {
		return "", fmt.Errorf("%w: estimate gas: %v", domainerrors.ErrSubmissionFailed, err)
	}

	tx := types.NewTransaction(accountNonce, to, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := u.signer.SignTx(tx)
	if err != nil {
		return "", fmt.Errorf("%w: sign transaction: %v", domainerrors.ErrSubmissionFailed, err)
	}

	if err := u.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("%w: broadcast: %v", domainerrors.ErrSubmissionFailed, err)
	}

	return signedTx.Hash().Hex(), nil
}

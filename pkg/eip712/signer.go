package eip712

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// EIP-712 domain for the attestation contract.
const (
	DomainName    = "Together"
	DomainVersion = "1"
)

var (
	domainTypeHash   = keccak([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	togetherTypeHash = keccak([]byte("TogetherData(address onBehalfOf,address togetherWith,uint256 timestamp,bytes32 nonce,uint256 deadline)"))
)

var ErrInvalidSignature = errors.New("eip712: invalid signature")

// Signer produces the backend authorization signatures the contract's
// together entrypoint verifies.
type Signer struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	if len(privateKeyHex) >= 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	if chainID <= 0 {
		return nil, errors.New("eip712: invalid chain id")
	}
	return &Signer{key: key, chainID: big.NewInt(chainID)}, nil
}

// Address returns the signing address the contract must allow-list.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignTx signs a transaction with the backend key for this chain.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}

// SignAttestation signs TogetherData(onBehalfOf, togetherWith,
// timestamp, nonce, deadline) bound to the verifying contract. The
// returned signature is 65 bytes, V in {27, 28}.
func (s *Signer) SignAttestation(contract, onBehalfOf, togetherWith common.Address, timestamp uint64, nonce [32]byte, deadline uint64) ([]byte, error) {
	digest := AttestationDigest(s.chainID, contract, onBehalfOf, togetherWith, timestamp, nonce, deadline)
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// AttestationDigest computes the EIP-712 signing hash.
func AttestationDigest(chainID *big.Int, contract, onBehalfOf, togetherWith common.Address, timestamp uint64, nonce [32]byte, deadline uint64) common.Hash {
	structHash := keccak(encodeWords(
		togetherTypeHash[:],
		leftPadAddress(onBehalfOf),
		leftPadAddress(togetherWith),
		uint256Word(new(big.Int).SetUint64(timestamp)),
		nonce[:],
		uint256Word(new(big.Int).SetUint64(deadline)),
	))
	domainSeparator := keccak(encodeWords(
		domainTypeHash[:],
		keccakWord([]byte(DomainName)),
		keccakWord([]byte(DomainVersion)),
		uint256Word(chainID),
		leftPadAddress(contract),
	))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{0x19, 0x01})
	h.Write(domainSeparator[:])
	h.Write(structHash[:])
	var digest common.Hash
	h.Sum(digest[:0])
	return digest
}

// RecoverSigner returns the address that produced sig over the digest.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// GenerateNonce draws a random 32-byte authorization nonce.
func GenerateNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// DeadlineAfter returns a unix deadline d from now.
func DeadlineAfter(d time.Duration) uint64 {
	return uint64(time.Now().Add(d).Unix())
}

func keccak(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

func keccakWord(data []byte) []byte {
	h := keccak(data)
	return h[:]
}

func encodeWords(words ...[]byte) []byte {
	out := make([]byte, 0, len(words)*32)
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

func leftPadAddress(addr common.Address) []byte {
	word := make([]byte, 32)
	copy(word[12:], addr.Bytes())
	return word
}

func uint256Word(v *big.Int) []byte {
	word := make([]byte, 32)
	v.FillBytes(word)
	return word
}

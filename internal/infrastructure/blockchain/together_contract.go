package blockchain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// togetherABI covers the single entrypoint the submitter calls and the
// event the watcher indexes.
const togetherABI = `[
  {
    "type": "function",
    "name": "together",
    "inputs": [
      {"name": "onBehalfOf", "type": "address"},
      {"name": "togetherWith", "type": "address"},
      {"name": "timestamp", "type": "uint256"},
      {"name": "authData", "type": "tuple", "components": [
        {"name": "nonce", "type": "bytes32"},
        {"name": "deadline", "type": "uint256"},
        {"name": "signature", "type": "bytes"}
      ]}
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "Together",
    "inputs": [
      {"name": "userA", "type": "address", "indexed": true},
      {"name": "userB", "type": "address", "indexed": true},
      {"name": "timestamp", "type": "uint256", "indexed": false}
    ]
  }
]`

// AuthData mirrors the contract's authorization tuple.
type AuthData struct {
	Nonce     [32]byte `abi:"nonce"`
	Deadline  *big.Int `abi:"deadline"`
	Signature []byte   `abi:"signature"`
}

// TogetherEvent is a decoded Together log.
type TogetherEvent struct {
	UserA       common.Address
	UserB       common.Address
	Timestamp   *big.Int
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// TogetherContract packs calls to and decodes events from the
// attestation contract.
type TogetherContract struct {
	address common.Address
	abi     abi.ABI
}

func NewTogetherContract(address string) (*TogetherContract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address: %s", address)
	}
	parsed, err := abi.JSON(strings.NewReader(togetherABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}
	return &TogetherContract{
		address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

// Address returns the contract address.
func (c *TogetherContract) Address() common.Address {
	return c.address
}

// EventTopic returns topic0 of the Together event.
func (c *TogetherContract) EventTopic() common.Hash {
	return c.abi.Events["Together"].ID
}

// PackTogether encodes a together(onBehalfOf, togetherWith, timestamp, authData) call.
func (c *TogetherContract) PackTogether(onBehalfOf, togetherWith common.Address, timestamp uint64, nonce [32]byte, deadline uint64, signature []byte) ([]byte, error) {
	auth := AuthData{
		Nonce:     nonce,
		Deadline:  new(big.Int).SetUint64(deadline),
		Signature: signature,
	}
	return c.abi.Pack("together", onBehalfOf, togetherWith, new(big.Int).SetUint64(timestamp), auth)
}

// ParseTogetherLog decodes a raw log into a TogetherEvent. Logs that do
// not carry the Together topic are rejected.
func (c *TogetherContract) ParseTogetherLog(log types.Log) (*TogetherEvent, error) {
	if len(log.Topics) != 3 || log.Topics[0] != c.EventTopic() {
		return nil, fmt.Errorf("log is not a Together event")
	}

	values, err := c.abi.Events["Together"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack Together event data: %w", err)
	}
	timestamp, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected timestamp type in Together event")
	}

	return &TogetherEvent{
		UserA:       common.BytesToAddress(log.Topics[1].Bytes()),
		UserB:       common.BytesToAddress(log.Topics[2].Bytes()),
		Timestamp:   timestamp,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
		BlockNumber: log.BlockNumber,
	}, nil
}

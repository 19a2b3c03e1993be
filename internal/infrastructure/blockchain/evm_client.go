package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	dialEVMClient    = ethclient.Dial
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
)

// EVMClient provides EVM blockchain interaction
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
	rpcURL  string
	// test hooks allow deterministic unit tests without network sockets.
	testBlockNumber func(ctx context.Context) (uint64, error)
	testFilterLogs  func(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	testSendTx      func(ctx context.Context, tx *types.Transaction) error
	testNonceAt     func(ctx context.Context, account common.Address) (uint64, error)
	testGasPrice    func(ctx context.Context) (*big.Int, error)
	testEstimateGas func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	testBalanceAt   func(ctx context.Context, account common.Address) (*big.Int, error)
}

// NewEVMClient creates a new EVM client
func NewEVMClient(rpcURL string) (*EVMClient, error) {
	client, err := dialEVMClient(rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := getClientChainID(client, context.Background())
	if err != nil {
		return nil, err
	}

	return &EVMClient{
		client:  client,
		chainID: chainID,
		rpcURL:  rpcURL,
	}, nil
}

// ChainID returns the chain ID
func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

// BlockNumber gets the latest block number
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	if c.testBlockNumber != nil {
		return c.testBlockNumber(ctx)
	}
	return c.client.BlockNumber(ctx)
}

// FilterLogs fetches logs matching the query
func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if c.testFilterLogs != nil {
		return c.testFilterLogs(ctx, q)
	}
	return c.client.FilterLogs(ctx, q)
}

// SendTransaction broadcasts a signed transaction
func (c *EVMClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.testSendTx != nil {
		return c.testSendTx(ctx, tx)
	}
	return c.client.SendTransaction(ctx, tx)
}

// PendingNonceAt returns the next account nonce including pending transactions
func (c *EVMClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if c.testNonceAt != nil {
		return c.testNonceAt(ctx, account)
	}
	return c.client.PendingNonceAt(ctx, account)
}

// SuggestGasPrice returns the gas price the node suggests
func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.testGasPrice != nil {
		return c.testGasPrice(ctx)
	}
	return c.client.SuggestGasPrice(ctx)
}

// EstimateGas estimates gas for a transaction with a 10% buffer
func (c *EVMClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var (
		gas uint64
		err error
	)
	if c.testEstimateGas != nil {
		gas, err = c.testEstimateGas(ctx, msg)
	} else {
		gas, err = c.client.EstimateGas(ctx, msg)
	}
	if err != nil {
		return 0, err
	}
	return gas + gas/10, nil
}

// GetBalance gets the native token balance of an address
func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	addr := common.HexToAddress(address)
	if c.testBalanceAt != nil {
		return c.testBalanceAt(ctx, addr)
	}
	return c.client.BalanceAt(ctx, addr, nil)
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

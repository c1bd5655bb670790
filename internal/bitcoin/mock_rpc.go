package bitcoin

import (
	"context"
	"sync"
)

// MockRPC implements Core for testing the follower without a live
// bitcoind. Adapted from the teacher's MockRPC (mock_rpc.go): same
// sensible-defaults-plus-error-override shape, retargeted from mining
// RPC calls to the indexer's read-only block/transaction lookups.
type MockRPC struct {
	mu sync.Mutex

	BlockCount   int64
	BlockHashes  map[int64]string
	Blocks       map[string]*Block
	Transactions map[string]*Transaction

	GetBlockCountErr     error
	GetBlockHashErr      error
	GetBlockErr          error
	GetRawTransactionErr error
}

// NewMockRPC creates a new mock Bitcoin Core RPC client with a single
// block at height 800000.
func NewMockRPC() *MockRPC {
	hash := "0000000000000003fa0d845513ea5014a7859d411f5f4a91eaab24eb47a18f39"
	return &MockRPC{
		BlockCount:  800000,
		BlockHashes: map[int64]string{800000: hash},
		Blocks: map[string]*Block{
			hash: {Hash: hash, Height: 800000, Time: 1700000000, Confirmations: 1},
		},
		Transactions: map[string]*Transaction{},
	}
}

func (m *MockRPC) GetBlockCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetBlockCountErr != nil {
		return 0, m.GetBlockCountErr
	}
	return m.BlockCount, nil
}

func (m *MockRPC) GetBlockHash(_ context.Context, height int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetBlockHashErr != nil {
		return "", m.GetBlockHashErr
	}
	hash, ok := m.BlockHashes[height]
	if !ok {
		return "", &RPCError{Code: -8, Message: "Block height out of range"}
	}
	return hash, nil
}

func (m *MockRPC) GetBlock(_ context.Context, hash string) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetBlockErr != nil {
		return nil, m.GetBlockErr
	}
	block, ok := m.Blocks[hash]
	if !ok {
		return nil, &RPCError{Code: -5, Message: "Block not found"}
	}
	return block, nil
}

func (m *MockRPC) GetRawTransaction(_ context.Context, txid string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetRawTransactionErr != nil {
		return nil, m.GetRawTransactionErr
	}
	tx, ok := m.Transactions[txid]
	if !ok {
		return nil, &RPCError{Code: -5, Message: "No such mempool or blockchain transaction"}
	}
	return tx, nil
}

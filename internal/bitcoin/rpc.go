// Package bitcoin implements the Bitcoin Core RPC client consumed by the
// block follower (spec.md §6: "used only by the follower, not the core").
// Adapted from the teacher's stratum-facing bitcoind client
// (internal/bitcoin/rpc.go): same JSON-RPC-over-HTTP transport, same
// request/response envelope, retargeted from block-template/submit
// methods to the three read-only calls an indexer's follower needs.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Core defines the subset of Bitcoin Core's RPC surface the follower
// consumes: spec.md §6's get_block_count/get_block/get_raw_transaction.
type Core interface {
	GetBlockCount(ctx context.Context) (int64, error)
	GetBlockHash(ctx context.Context, height int64) (string, error)
	GetBlock(ctx context.Context, hash string) (*Block, error)
	GetRawTransaction(ctx context.Context, txid string) (*Transaction, error)
}

// RPCClient implements Core using JSON-RPC over HTTP.
type RPCClient struct {
	url      string
	user     string
	password string
	client   *http.Client
	idSeq    atomic.Int64
}

// NewRPCClient creates a new Bitcoin Core JSON-RPC client.
func NewRPCClient(url, user, password string) *RPCClient {
	return &RPCClient{
		url:      url,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RPCClient) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	id := c.idSeq.Add(1)

	req := RPCRequest{
		JSONRPC: "1.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.password)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("RPC request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(respBody))
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// GetBlockCount returns the current chain tip height.
func (c *RPCClient) GetBlockCount(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "getblockcount")
	if err != nil {
		return 0, fmt.Errorf("getblockcount: %w", err)
	}

	var height int64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, fmt.Errorf("unmarshal block count: %w", err)
	}
	return height, nil
}

// GetBlockHash returns the block hash at height.
func (c *RPCClient) GetBlockHash(ctx context.Context, height int64) (string, error) {
	result, err := c.call(ctx, "getblockhash", height)
	if err != nil {
		return "", fmt.Errorf("getblockhash: %w", err)
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal block hash: %w", err)
	}
	return hash, nil
}

// GetBlock returns the full block (verbosity=2: transaction bodies
// included) for hash. The follower resolves height -> hash via
// GetBlockHash first and records the hash it processed at each height; it
// does not compare hashes across calls, so a reorg is not detected.
func (c *RPCClient) GetBlock(ctx context.Context, hash string) (*Block, error) {
	result, err := c.call(ctx, "getblock", hash, 2)
	if err != nil {
		return nil, fmt.Errorf("getblock: %w", err)
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, nil
}

// GetRawTransaction fetches a single transaction by txid, verbose. The
// follower does not call it.
func (c *RPCClient) GetRawTransaction(ctx context.Context, txid string) (*Transaction, error) {
	result, err := c.call(ctx, "getrawtransaction", txid, true)
	if err != nil {
		return nil, fmt.Errorf("getrawtransaction: %w", err)
	}

	var tx Transaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

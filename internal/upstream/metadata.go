// Package upstream implements the external transaction-metadata RPC client
// consumed by the follower (spec.md §6: get_transactions(block_height)).
// Fanout across a window of heights is bounded-concurrency and
// rate-limited, grounded on the teacher's internal/p2p/pubsub.go's
// per-peer golang.org/x/time/rate limiter pattern, repurposed here as a
// single shared limiter over outbound RPC calls rather than per-peer
// inbound ones.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// TransactionCandidate is one upstream-provided transaction (spec.md §3).
type TransactionCandidate struct {
	BlockHeight   int64  `json:"block_height"`
	BlockTime     int64  `json:"block_time"`
	TxIndex       int64  `json:"tx_index"`
	TxHash        string `json:"tx_hash"`
	SourceAddress string `json:"source"`
	DestAddress   string `json:"destination"`
	Keyburn       bool   `json:"keyburn"`
	IsOpReturn    bool   `json:"op_return"`
	RawPayload    []byte `json:"data"`
	CPID          string `json:"cpid,omitempty"`
	AssetLongname string `json:"asset_longname,omitempty"`
	Description   string `json:"description,omitempty"`
}

// MetadataRPC is the consumed interface: one call per block height.
type MetadataRPC interface {
	GetTransactions(ctx context.Context, blockHeight int64) ([]TransactionCandidate, error)
}

// Client implements MetadataRPC over HTTP, rate-limited per spec.md §5's
// "bounded pool, each request idempotent" requirement.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a metadata RPC client. ratePerSecond and burst bound the
// outbound request rate the same way the teacher's pubsub limiter bounds
// inbound gossip — a shared ceiling, not a per-caller one, since every
// caller here talks to the same upstream service.
func NewClient(baseURL string, ratePerSecond float64, burst int) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// GetTransactions fetches every transaction candidate for blockHeight.
func (c *Client) GetTransactions(ctx context.Context, blockHeight int64) ([]TransactionCandidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/transactions?block_height=%d", c.baseURL, blockHeight)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get_transactions(%d): %w", blockHeight, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get_transactions(%d): status %d: %s", blockHeight, resp.StatusCode, string(body))
	}

	var candidates []TransactionCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}
	return candidates, nil
}

// FetchRange fetches transactions for every height in [from, to] with
// bounded concurrency (maxInFlight simultaneous requests), preserving
// per-height ordering in the returned slice regardless of completion
// order — spec.md §5 permits concurrent RPC fanout but the core still
// consumes blocks in height order.
func FetchRange(ctx context.Context, rpc MetadataRPC, from, to int64, maxInFlight int) ([][]TransactionCandidate, error) {
	if to < from {
		return nil, fmt.Errorf("invalid range [%d, %d]", from, to)
	}
	n := int(to-from) + 1
	results := make([][]TransactionCandidate, n)
	errs := make([]error, n)

	sem := make(chan struct{}, maxInFlight)
	done := make(chan int, n)

	for i := 0; i < n; i++ {
		i := i
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- i }()
			txs, err := rpc.GetTransactions(ctx, from+int64(i))
			results[i] = txs
			errs[i] = err
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// UpstreamError marks a get_transactions failure that survived every retry
// (spec.md §7): the caller must not advance block processing and should
// sleep until its next poll interval instead.
type UpstreamError struct {
	BlockHeight int64
	Attempts    int
	Err         error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("get_transactions(%d): exhausted %d attempts: %v", e.BlockHeight, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// retryBaseDelay is a var, not a const, so tests can shrink it; production
// callers never need to touch it.
var retryBaseDelay = time.Second

const (
	retryFactor = 2
	maxAttempts = 5
)

// GetTransactionsWithRetry calls rpc.GetTransactions with capped
// exponential backoff — base 1s, factor 2, up to 5 attempts, exactly
// spec.md §7's UpstreamError policy. Returns *UpstreamError once attempts
// are exhausted.
func GetTransactionsWithRetry(ctx context.Context, rpc MetadataRPC, blockHeight int64) ([]TransactionCandidate, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		txs, err := rpc.GetTransactions(ctx, blockHeight)
		if err == nil {
			return txs, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &UpstreamError{BlockHeight: blockHeight, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= retryFactor
	}
	return nil, &UpstreamError{BlockHeight: blockHeight, Attempts: maxAttempts, Err: lastErr}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/btcstamps/stampindexer/internal/bitcoin"
	"github.com/btcstamps/stampindexer/internal/metrics"
	"github.com/btcstamps/stampindexer/internal/oracle"
	"github.com/btcstamps/stampindexer/internal/upstream"
)

// Follower drives the Engine's block-by-block processing against a live
// Bitcoin Core node and the upstream metadata RPC, polling for new blocks
// at a fixed interval (spec.md §1 scopes full reorg recovery out of
// core; this is the thin polling harness spec.md §5/§6 still requires
// something to sequence the follower's RPC calls). Grounded on the
// teacher's p2p.Node run loop shape: resolve current tip, process what's
// new, sleep, repeat.
type Follower struct {
	core     bitcoin.Core
	metadata upstream.MetadataRPC
	engine   *Engine
	oracle   *oracle.Client
	policy   oracle.FailurePolicy

	pollInterval time.Duration
	maxInFlight  int
	logger       *zap.Logger

	lastHash map[int64]string
}

// NewFollower builds a Follower. oracleClient may be nil to disable
// cross-validation entirely (spec.md §4.7's oracle is optional).
func NewFollower(core bitcoin.Core, metadata upstream.MetadataRPC, engine *Engine, oracleClient *oracle.Client, policy oracle.FailurePolicy, pollInterval time.Duration, maxInFlight int, logger *zap.Logger) *Follower {
	return &Follower{
		core:         core,
		metadata:     metadata,
		engine:       engine,
		oracle:       oracleClient,
		policy:       policy,
		pollInterval: pollInterval,
		maxInFlight:  maxInFlight,
		logger:       logger,
		lastHash:     make(map[int64]string),
	}
}

// Run polls for new blocks until ctx is cancelled, processing each one as
// it appears. lastProcessed is the height of the most recently committed
// block (balances.Store.LastProcessedHeight's return value); Run starts
// from lastProcessed+1.
func (f *Follower) Run(ctx context.Context, lastProcessed int64) error {
	next := lastProcessed + 1

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tip, err := f.core.GetBlockCount(ctx)
		if err != nil {
			f.logger.Warn("get_block_count failed, will retry next poll", zap.Error(err))
			if !f.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		if next > tip {
			if !f.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		if err := f.processOne(ctx, next); err != nil {
			var upErr *upstream.UpstreamError
			if !errors.As(err, &upErr) {
				return err
			}
			f.logger.Warn("get_transactions exhausted its retries, will retry next poll", zap.Error(err))
			if !f.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		next++
	}
}

// processOne fetches and commits a single block at height, then optionally
// cross-validates against the external oracle.
func (f *Follower) processOne(ctx context.Context, height int64) error {
	hash, err := f.core.GetBlockHash(ctx, height)
	if err != nil {
		return fmt.Errorf("get_block_hash(%d): %w", height, err)
	}

	block, err := f.core.GetBlock(ctx, hash)
	if err != nil {
		return fmt.Errorf("get_block(%s): %w", hash, err)
	}

	candidates, err := upstream.GetTransactionsWithRetry(ctx, f.metadata, height)
	if err != nil {
		return fmt.Errorf("get_transactions(%d): %w", height, err)
	}

	start := time.Now()
	result, err := f.engine.ProcessBlock(height, block.Time, candidates)
	if err != nil {
		return fmt.Errorf("process block %d: %w", height, err)
	}
	metrics.BlockProcessingSeconds.Observe(time.Since(start).Seconds())

	f.lastHash[height] = hash

	if f.oracle != nil {
		if err := oracle.Compare(ctx, f.oracle, height, result.LedgerHash, f.policy, f.logger); err != nil {
			metrics.OracleMismatches.Inc()
			return fmt.Errorf("oracle cross-validation at height %d: %w", height, err)
		}
	}

	f.logger.Info("block committed",
		zap.Int64("height", height),
		zap.Int("transactions", len(candidates)),
		zap.String("ledger_hash", result.LedgerHash),
		zap.String("block_messages_hash", result.BlockMessagesHash))

	return nil
}

func (f *Follower) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(f.pollInterval):
		return true
	}
}

package orchestrator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/btcstamps/stampindexer/internal/balances"
	"github.com/btcstamps/stampindexer/internal/blobstore"
	"github.com/btcstamps/stampindexer/internal/blockmessages"
	"github.com/btcstamps/stampindexer/internal/format"
	"github.com/btcstamps/stampindexer/internal/ledgerhash"
	"github.com/btcstamps/stampindexer/internal/metrics"
	"github.com/btcstamps/stampindexer/internal/src20"
	"github.com/btcstamps/stampindexer/internal/stamp"
	"github.com/btcstamps/stampindexer/internal/ticknorm"
	"github.com/btcstamps/stampindexer/internal/upstream"
)

// BlockResult summarizes one committed block for callers (the follower,
// the reparse CLI path, tests) that need the per-block hashes without
// re-deriving them.
type BlockResult struct {
	Height            int64
	Classifications   []*stamp.Classification
	LedgerHash        string
	BlockMessagesHash string
	MutatedBalances   []balances.Row
}

// Engine wires the core packages together into the per-block control flow
// spec.md §2 describes. It owns the pieces that outlive a single block
// (the BalanceStore, the stamp numbering counters) and constructs the
// pieces that are scoped to one block (ShadowList, NumberingContext,
// blockmessages.Feed) fresh on every call to ProcessBlock.
type Engine struct {
	store  *balances.Store
	blobs  blobstore.Store
	logger *zap.Logger
}

// NewEngine builds an Engine against a persistent BalanceStore and a blob
// store for rendered SRC-20 artifacts. Pass blobstore.NullStore{} for
// reparse/dry-run paths that must not touch the artifact directory
// (spec.md §6).
func NewEngine(store *balances.Store, blobs blobstore.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, blobs: blobs, logger: logger}
}

// ProcessBlock runs every candidate transaction through the classification
// pipeline and, for accepted SRC-20 operations, the balance processor —
// in tx_index order, spec.md §2/§4.3 step 1 — then commits the block's
// combined balance deltas and computes the two independent per-block
// hashes. It does not call BalanceStore.Update until every candidate has
// been classified, so a ConsistencyError partway through a block leaves
// no partial commit behind.
func (e *Engine) ProcessBlock(height int64, blockTime int64, candidates []upstream.TransactionCandidate) (*BlockResult, error) {
	numbering := NewNumberingContext(e.store)
	shadow := src20.NewShadowList()
	processor := src20.NewProcessor(e.store, shadow, e.logger)
	pipeline := stamp.NewPipeline(numbering, e.logger)
	feed := blockmessages.NewFeed(height)

	classifications := make([]*stamp.Classification, 0, len(candidates))

	for _, tx := range candidates {
		metrics.TransactionsProcessed.Inc()

		in := stamp.Input{
			TxHash:        tx.TxHash,
			BlockHeight:   height,
			BlockTime:     blockTime,
			UpstreamCPID:  tx.CPID,
			AssetLongname: tx.AssetLongname,
			IsOpReturn:    tx.IsOpReturn,
			RawPayload:    tx.RawPayload,
			SourceAddress: tx.SourceAddress,
			DestAddress:   tx.DestAddress,
		}

		c, err := pipeline.Classify(in, numbering)
		if err != nil {
			return nil, fmt.Errorf("classify tx %s: %w", tx.TxHash, err)
		}
		classifications = append(classifications, c)
		recordStampOutcome(c)

		if c.IsBTCStamp || c.IsCursed {
			numbering.MarkAssigned(c.CPID, c.StampNumber)
			if len(c.ArtifactBytes) > 0 && e.blobs != nil {
				filename := fmt.Sprintf("%s.%s", c.CPID, c.FileSuffix)
				mime := artifactMime(c.FileSuffix)
				if _, _, err := e.blobs.Store(filename, c.ArtifactBytes, mime); err != nil {
					return nil, fmt.Errorf("store artifact for %s: %w", c.CPID, err)
				}
			}
		}

		if c.SRC20 == nil || in.IsOpReturn {
			continue
		}
		rec, ok := recordFromResult(c.SRC20, tx, height, blockTime)
		if !ok {
			continue
		}
		if err := processor.Process(rec, height); err != nil {
			return nil, fmt.Errorf("process src20 op %s/%s: %w", rec.Tick, rec.TxHash, err)
		}
		metrics.SRC20OperationsProcessed.WithLabelValues(string(rec.Op), statusCode(rec.Status)).Inc()
		recordSRC20Message(feed, rec)
	}

	combined := src20.CombineDeltas(processor.ShadowDeltas())
	var mutated []balances.Row
	if len(combined) > 0 {
		var err error
		mutated, err = e.store.Update(combined, height, blockTime)
		if err != nil {
			return nil, fmt.Errorf("commit balance deltas: %w", err)
		}
	}

	if err := numbering.Commit(); err != nil {
		return nil, fmt.Errorf("commit stamp numbering: %w", err)
	}

	ledgerHash := ledgerhash.Hash(ledgerhash.FromRows(mutated))
	blockMessagesHash := feed.Hash()

	metrics.IndexerHeight.Set(float64(height))
	metrics.BlocksProcessed.Inc()

	return &BlockResult{
		Height:            height,
		Classifications:   classifications,
		LedgerHash:        ledgerHash,
		BlockMessagesHash: blockMessagesHash,
		MutatedBalances:   mutated,
	}, nil
}

func recordStampOutcome(c *stamp.Classification) {
	switch {
	case c.IsBTCStamp:
		metrics.StampsClassified.WithLabelValues("btc_stamp").Inc()
	case c.IsCursed:
		metrics.StampsClassified.WithLabelValues("cursed").Inc()
	default:
		metrics.StampsClassified.WithLabelValues("unknown").Inc()
	}
}

func artifactMime(suffix string) string {
	switch suffix {
	case "svg":
		return "image/svg+xml"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// statusCode trims a Record's full "CODE: message" status down to just the
// code, for the metrics label — the message half carries per-record
// detail that would blow up the label's cardinality.
func statusCode(status string) string {
	for i, c := range status {
		if c == ':' {
			return status[:i]
		}
	}
	return status
}

// recordFromResult converts a format.Result (the output of the payload
// shape check) into an src20.Record (the processor's input), resolving
// the op name and pulling creator/destination from the transaction the
// payload arrived in. ok is false when the payload's op isn't one the
// processor dispatches at all — format.Check already validated shape, but
// op itself isn't re-validated there.
func recordFromResult(r *format.Result, tx upstream.TransactionCandidate, height, blockTime int64) (*src20.Record, bool) {
	opRaw, _ := r.Fields["op"].(string)
	op := normalizeOp(opRaw)
	if op == "" {
		return nil, false
	}

	lowerTick := lowercase(r.Tick)
	rec := &src20.Record{
		Tick:        r.Tick,
		TickHash:    ticknorm.Hash(lowerTick),
		Op:          op,
		Creator:     tx.SourceAddress,
		Destination: tx.DestAddress,
		BlockHeight: height,
		BlockTime:   blockTime,
		TxHash:      tx.TxHash,
	}

	if max, ok := r.Numeric["max"]; ok {
		rec.Max = max
	}
	if lim, ok := r.Numeric["lim"]; ok {
		rec.Lim = lim
	}
	if amt, ok := r.Numeric["amt"]; ok {
		rec.Amt = amt
		rec.AmtPresent = true
	}
	if holdersOf, ok := r.Fields["holders_of"].(string); ok {
		rec.HoldersOf = holdersOf
	}

	if decRaw, present := r.Fields["dec"]; present && decRaw != nil {
		if d, ok := parseDec(decRaw); ok {
			rec.Dec = d
			rec.DecPresent = true
		}
	}

	return rec, true
}

func normalizeOp(raw string) src20.Op {
	switch upper(raw) {
	case "DEPLOY":
		return src20.OpDeploy
	case "MINT":
		return src20.OpMint
	case "TRANSFER":
		return src20.OpTransfer
	case "BULK_XFER":
		return src20.OpBulkXfer
	default:
		return ""
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func lowercase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// parseDec realizes src20.py's Src20Validator._apply_regex_validation for
// the "dec" key: dec_pattern.match(str(value)) and 0 <= int(value) <= 18.
// A value outside that range or not a plain non-negative integer comes
// back ok=false, which leaves the caller's DecPresent false so handleDeploy
// falls through to the spec's documented default of 18 (spec §3/§4.4;
// §8's "dec = 19 rejected at DEPLOY") instead of storing the out-of-range
// value verbatim.
func parseDec(raw interface{}) (int, bool) {
	var n int
	switch v := raw.(type) {
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, false
		}
		n = i
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		n = int(v)
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n < 0 || n > 18 {
		return 0, false
	}
	return n, true
}

// recordSRC20Message feeds a processed SRC-20 record into the block's
// DML-equivalent message stream (spec.md §4.8): SRC-20 operations are not
// in blockmessages' fixed skip-table list, so every processed op —
// valid or not — contributes one message, category "src20".
func recordSRC20Message(feed *blockmessages.Feed, rec *src20.Record) {
	feed.Record(blockmessages.Insert, "src20", map[string]interface{}{
		"tick":   rec.Tick,
		"op":     string(rec.Op),
		"tx":     rec.TxHash,
		"status": rec.Status,
	})
}

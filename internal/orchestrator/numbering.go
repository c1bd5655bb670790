// Package orchestrator wires the core packages together into the
// per-block control flow spec.md §2 describes: the stamp pipeline
// classifies each candidate transaction in tx_index order, SRC-20 outputs
// accumulate against the in-block shadow list, and at block end the
// BalanceStore commits and the ledger/block-messages hashes are emitted.
// It is the orchestration layer, not core consensus logic: spec.md §1
// scopes the follower/reorg-handling itself out of the core, but
// something has to call the core in sequence, and this is that glue —
// grounded on the teacher's internal/node (its event-type vocabulary is
// the only surviving fragment of p2pool-go's own orchestrator, the rest
// of that package having been absent from the retrieval pack).
package orchestrator

import (
	"github.com/btcstamps/stampindexer/internal/balances"
)

// NumberingContext implements stamp.Numberer and stamp.ReissueCheck
// against a persistent BalanceStore, adding the one thing the store alone
// cannot provide: visibility into stamp numbers assigned earlier in the
// same, not-yet-committed block (spec.md §4.3 step 4, "including earlier
// in this same block").
type NumberingContext struct {
	store         *balances.Store
	seenThisBlock map[string]int64
}

// NewNumberingContext starts a fresh per-block numbering context. A new
// one must be created for each block; reusing one across blocks would
// make every CPID in the second block look like a reissue of the first.
func NewNumberingContext(store *balances.Store) *NumberingContext {
	return &NumberingContext{store: store, seenThisBlock: make(map[string]int64)}
}

// Next advances the persistent BTC-stamp or cursed-stamp counter.
func (n *NumberingContext) Next(cursed bool) (int64, error) {
	return n.store.NextStampNumber(cursed)
}

// IsReissue reports whether cpid already has a stamp number, checking
// this block's in-flight assignments before falling back to the
// persistent store — the same shadow-list-first pattern internal/src20
// uses for balances.
func (n *NumberingContext) IsReissue(cpid string) (bool, error) {
	if _, ok := n.seenThisBlock[cpid]; ok {
		return true, nil
	}
	_, found, err := n.store.StampNumberForCPID(cpid)
	return found, err
}

// MarkAssigned records that cpid was just assigned number within this
// block, so any later transaction in the same block (or a later block,
// once Commit persists it) sees it as a reissue.
func (n *NumberingContext) MarkAssigned(cpid string, number int64) {
	n.seenThisBlock[cpid] = number
}

// Commit persists every number assigned during this block to the store's
// cross-block reissue index. Called once at block end, after every
// transaction has been classified — numbering decisions within the block
// must not leak to the persistent store until the whole block is known
// good.
func (n *NumberingContext) Commit() error {
	for cpid, number := range n.seenThisBlock {
		if err := n.store.RecordStampNumber(cpid, number); err != nil {
			return err
		}
	}
	return nil
}

// Package balances implements the persistent BalanceStore (spec.md §4.6):
// per-(tick, address) balance rows, per-tick DEPLOY metadata, and the
// process-wide exclusive lock that makes the indexer single-writer. The
// API shape (NewStore/Close, one bucket per concern, an explicit exclusive
// open) follows the teacher's bbolt-backed sharechain store.
package balances

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/btcstamps/stampindexer/internal/decimal"
)

var (
	balancesBucket = []byte("balances")
	deploysBucket  = []byte("deploys")
	metaBucket     = []byte("meta")
	stampsBucket   = []byte("stamps")
)

const heightKey = "height"
const nextBTCStampKey = "next_btc_stamp"
const nextCursedStampKey = "next_cursed_stamp"

// Row is a single persistent balance record.
type Row struct {
	Tick       string    `json:"tick"`
	TickHash   string    `json:"tick_hash"`
	Address    string    `json:"address"`
	Amt        string    `json:"amt"`
	LockedAmt  string    `json:"locked_amt"`
	LastUpdate int64     `json:"last_update"`
	BlockTime  time.Time `json:"block_time"`
}

// DeployRow is the persistent DEPLOY record for a tick: the immutable
// numeric terms plus the merge-on-write metadata fields (SPEC_FULL.md
// supplemented feature 1) and the running mint total.
type DeployRow struct {
	Tick             string `json:"tick"`
	TickHash         string `json:"tick_hash"`
	Max              string `json:"max"`
	Lim              string `json:"lim"`
	Dec              int    `json:"dec"`
	Description      string `json:"description,omitempty"`
	X                string `json:"x,omitempty"`
	Tg               string `json:"tg,omitempty"`
	Web              string `json:"web,omitempty"`
	Email            string `json:"email,omitempty"`
	DeployBlockIndex int64  `json:"deploy_block_index"`
	DeployTxHash     string `json:"deploy_tx_hash"`
	TotalMinted      string `json:"total_minted"`
}

// BalanceDelta is one credit or debit to apply to a (tick, address) row.
// Delta may be negative (a debit).
type BalanceDelta struct {
	Tick     string
	TickHash string
	Address  string
	Delta    decimal.D
}

// Store is the bbolt-backed BalanceStore. Opening a Store takes bbolt's
// advisory file lock, which is what makes the indexer single-writer: a
// second process pointed at the same data directory fails NewStore with a
// LockError rather than corrupting state.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// LockError wraps the file-lock failure bbolt reports when another process
// already holds the store open, per spec.md §7.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("balances: could not acquire exclusive lock on %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// ConsistencyError marks an integrity failure that must abort the current
// block's commit rather than being absorbed as a per-record status
// (spec.md §7: "negative balance, foreign-key violation, integrity check
// fail — fatal; the block is not committed"). A ConsistencyError here
// indicates a bug upstream of BalanceStore — internal/src20's Processor
// should never produce a delta that drives a balance negative — so its
// surfacing is a backstop, not the primary enforcement point.
type ConsistencyError struct {
	Tick    string
	Address string
	Reason  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("balances: consistency check failed for %s/%s: %s", e.Tick, e.Address, e.Reason)
}

// NewStore opens (creating if absent) the bbolt database at path and
// ensures its buckets exist.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, &LockError{Path: path, Err: err}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{balancesBucket, deploysBucket, metaBucket, stampsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("balances: initializing buckets: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the store's file lock.
func (s *Store) Close() error { return s.db.Close() }

func rowKey(tick, address string) []byte {
	return []byte(tick + "_" + address)
}

// GetBalance returns the persistent balance of (tick, address), or zero if
// no row exists.
func (s *Store) GetBalance(tick, address string) (decimal.D, error) {
	var amt decimal.D
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(balancesBucket).Get(rowKey(tick, address))
		if raw == nil {
			amt = decimal.Zero()
			return nil
		}
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		d, err := decimal.Parse(row.Amt)
		if err != nil {
			return err
		}
		amt = d
		return nil
	})
	return amt, err
}

// GetDeploy returns the DEPLOY record for tick, if one has been committed.
func (s *Store) GetDeploy(tick string) (DeployRow, bool, error) {
	var row DeployRow
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(deploysBucket).Get([]byte(tick))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &row)
	})
	return row, found, err
}

// InsertDeploy commits a new DEPLOY record. Callers must first confirm no
// DEPLOY exists for the tick (the `DE` invariant is the processor's
// responsibility, not the store's — the store only ever appends).
func (s *Store) InsertDeploy(row DeployRow) error {
	if row.TotalMinted == "" {
		row.TotalMinted = "0"
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return tx.Bucket(deploysBucket).Put([]byte(row.Tick), buf)
	})
}

// UpsertDeployMetadata merges the non-empty optional metadata fields of
// update into the existing DEPLOY row for update.Tick, leaving fields
// already on record untouched when update supplies an empty string for
// them. This realizes SPEC_FULL.md's supplemented feature 1
// (insert_src20_metadata's ON DUPLICATE KEY UPDATE semantics): a second
// DEPLOY-shaped payload with partial metadata must not blank previously
// recorded fields.
func (s *Store) UpsertDeployMetadata(update DeployRow) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(deploysBucket)
		raw := b.Get([]byte(update.Tick))
		var existing DeployRow
		if raw != nil {
			if err := json.Unmarshal(raw, &existing); err != nil {
				return err
			}
		} else {
			existing = update
		}

		mergeString(&existing.Description, update.Description)
		mergeString(&existing.X, update.X)
		mergeString(&existing.Tg, update.Tg)
		mergeString(&existing.Web, update.Web)
		mergeString(&existing.Email, update.Email)

		buf, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		return b.Put([]byte(update.Tick), buf)
	})
}

func mergeString(existing *string, incoming string) {
	if incoming != "" {
		*existing = incoming
	}
}

// SetTotalMinted updates the running mint total recorded against a tick's
// DEPLOY row.
func (s *Store) SetTotalMinted(tick string, total decimal.D) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(deploysBucket)
		raw := b.Get([]byte(tick))
		if raw == nil {
			return fmt.Errorf("balances: no deploy record for tick %q", tick)
		}
		var row DeployRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		row.TotalMinted = total.FormatCanonical()
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put([]byte(tick), buf)
	})
}

// Update folds a block's combined per-(tick, address) balance deltas into
// persistent storage (spec.md §4.6): deltas sharing a (tick, address) must
// already be combined by the caller before calling Update. It upserts
// each row, rejects any commit that would drive a balance below zero, then
// deletes any row left at exactly zero, and returns the rows as they stood
// immediately after commit (before the zero-balance purge) for the
// ledger hasher to consume.
func (s *Store) Update(deltas []BalanceDelta, blockHeight, blockTime int64) ([]Row, error) {
	mutated := make([]Row, 0, len(deltas))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(balancesBucket)
		for _, d := range deltas {
			key := rowKey(d.Tick, d.Address)
			raw := b.Get(key)

			var row Row
			current := decimal.Zero()
			if raw != nil {
				if err := json.Unmarshal(raw, &row); err != nil {
					return err
				}
				parsed, err := decimal.Parse(row.Amt)
				if err != nil {
					return err
				}
				current = parsed
			} else {
				row = Row{Tick: d.Tick, TickHash: d.TickHash, Address: d.Address}
			}

			next := current.Add(d.Delta)
			if next.Sign() < 0 {
				return &ConsistencyError{
					Tick:    d.Tick,
					Address: d.Address,
					Reason:  fmt.Sprintf("commit would drive balance below zero (%s + %s)", current.String(), d.Delta.String()),
				}
			}

			row.Amt = next.FormatCanonical()
			row.LastUpdate = blockHeight
			row.BlockTime = time.Unix(blockTime, 0).UTC()
			mutated = append(mutated, row)

			if next.IsZero() {
				if err := b.Delete(key); err != nil {
					return err
				}
				continue
			}

			buf, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := b.Put(key, buf); err != nil {
				return err
			}
		}

		return tx.Bucket(metaBucket).Put([]byte(heightKey), []byte(fmt.Sprintf("%d", blockHeight)))
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(mutated, func(i, j int) bool {
		return mutated[i].Tick+"_"+mutated[i].Address < mutated[j].Tick+"_"+mutated[j].Address
	})
	return mutated, nil
}

// LastProcessedHeight returns the block height of the most recent
// successful Update call, or -1 if no block has been processed yet.
func (s *Store) LastProcessedHeight() (int64, error) {
	var height int64 = -1
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get([]byte(heightKey))
		if raw == nil {
			return nil
		}
		_, err := fmt.Sscanf(string(raw), "%d", &height)
		return err
	})
	return height, err
}

// NextStampNumber advances and returns the next_btc_stamp or
// next_cursed_stamp counter (spec.md §3): the two monotonically
// increasing counters stamp numbering draws from, persisted so numbering
// survives a restart. Both counters start at 0 and advance by exactly one
// per call.
func (s *Store) NextStampNumber(cursed bool) (int64, error) {
	key := []byte(nextBTCStampKey)
	if cursed {
		key = []byte(nextCursedStampKey)
	}

	var next int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		raw := b.Get(key)
		var current int64 = -1
		if raw != nil {
			if _, err := fmt.Sscanf(string(raw), "%d", &current); err != nil {
				return err
			}
		}
		next = current + 1
		return b.Put(key, []byte(fmt.Sprintf("%d", next)))
	})
	return next, err
}

// StampNumberForCPID reports whether cpid has already been assigned a
// stamp number in a prior block, for the reissue check (spec.md §4.3 step
// 4). Same-block reissue detection is the orchestrator's responsibility
// (spec.md §9's "including earlier in this same block" requires seeing
// not-yet-committed assignments, which this persistent lookup alone
// cannot do).
func (s *Store) StampNumberForCPID(cpid string) (int64, bool, error) {
	var number int64
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(stampsBucket).Get([]byte(cpid))
		if raw == nil {
			return nil
		}
		found = true
		_, err := fmt.Sscanf(string(raw), "%d", &number)
		return err
	})
	return number, found, err
}

// RecordStampNumber commits cpid's assigned stamp number so later blocks'
// reissue checks can see it.
func (s *Store) RecordStampNumber(cpid string, number int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stampsBucket).Put([]byte(cpid), []byte(fmt.Sprintf("%d", number)))
	})
}

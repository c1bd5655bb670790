// Package ledgerhash computes the per-block SRC-20 ledger hash (spec.md
// §4.7): a canonical string over every balance row mutated in the block,
// hashed with SHA-256. The hash is exposed for optional cross-validation
// against an external oracle (internal/oracle).
package ledgerhash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/btcstamps/stampindexer/internal/balances"
)

// Entry is one mutated balance row as the ledger hash canonicalizes it:
// tick, address, and the post-commit amount already rendered in canonical
// form (trailing zeros stripped, "0" for zero, no decimal point on an
// integral value).
type Entry struct {
	Tick    string
	Address string
	Amt     string
}

// FromRows converts BalanceStore.Update's mutated rows into ledger hash
// entries.
func FromRows(rows []balances.Row) []Entry {
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Tick: r.Tick, Address: r.Address, Amt: r.Amt}
	}
	return entries
}

// CanonicalString renders entries the way spec.md §4.7 requires: each as
// "tick,address,amt", sorted lexicographically by "tick_address", joined
// with ";".
func CanonicalString(entries []Entry) string {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sortKey(sorted[i]) < sortKey(sorted[j])
	})

	parts := make([]string, len(sorted))
	for i, e := range sorted {
		parts[i] = e.Tick + "," + e.Address + "," + e.Amt
	}
	return strings.Join(parts, ";")
}

func sortKey(e Entry) string { return e.Tick + "_" + e.Address }

// Hash computes the SHA-256 hex digest of entries' canonical string. The
// choice of SHA-256 is an implementation choice spec.md §4.7 leaves open;
// this is the algorithm internal/blockmessages also uses, keeping both
// per-block hashes on the same primitive.
func Hash(entries []Entry) string {
	sum := sha256.Sum256([]byte(CanonicalString(entries)))
	return hex.EncodeToString(sum[:])
}

// ParseCanonicalString is CanonicalString's inverse: it splits an external
// oracle's balance_data string (internal/oracle) back into entries, for
// callers that want to diff individual rows rather than just compare
// hashes. Malformed segments (wrong field count) are skipped rather than
// erroring — a partially-malformed oracle response shouldn't prevent
// comparing the rows that did parse.
func ParseCanonicalString(s string) []Entry {
	if s == "" {
		return nil
	}
	segments := strings.Split(s, ";")
	entries := make([]Entry, 0, len(segments))
	for _, seg := range segments {
		fields := strings.SplitN(seg, ",", 3)
		if len(fields) != 3 {
			continue
		}
		entries = append(entries, Entry{Tick: fields[0], Address: fields[1], Amt: fields[2]})
	}
	return entries
}

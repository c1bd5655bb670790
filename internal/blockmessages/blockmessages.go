// Package blockmessages builds the independent canonical stream for
// non-SRC-20 mutations (spec.md §4.8): every DML statement against a
// non-skipped table is recorded, in execution order, into a per-block
// message feed, then hashed at block end. Grounded on
// database.py's exectracer and its fixed skip-table list.
package blockmessages

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/btcstamps/stampindexer/internal/activation"
)

// Command is the DML verb of a single statement.
type Command string

const (
	Insert Command = "insert"
	Update Command = "update"
)

// skipTables are the tables exectracer always excludes from the message
// feed, command-independent.
var skipTables = map[string]bool{
	"blocks":        true,
	"transactions":  true,
	"balances":      true,
	"messages":      true,
	"mempool":       true,
	"assets":        true,
	"new_sends":     true,
	"new_issuances": true,
}

// updateOnlySkipTables are additionally excluded, but only for UPDATE
// statements — the original's `if command == 'update': skip_tables +=
// [...]` branch.
var updateOnlySkipTables = map[string]bool{
	"orders":        true,
	"bets":          true,
	"rps":           true,
	"order_matches": true,
	"bet_matches":   true,
	"rps_matches":   true,
}

// Feed accumulates one block's canonical message stream in statement
// execution order.
type Feed struct {
	height   int64
	messages []string
}

// NewFeed starts a message feed for the block at height. height drives the
// subassets/enhanced_sends field redaction below.
func NewFeed(height int64) *Feed {
	return &Feed{height: height}
}

// Record appends one DML statement's effect to the feed, if category isn't
// skipped for command. bindings is a flat string-keyed map of column name
// to bound value; Record takes ownership of it (it may delete keys from
// it per the subassets/enhanced_sends redaction rules) so callers should
// pass a copy if they need the original afterward.
func (f *Feed) Record(command Command, category string, bindings map[string]interface{}) {
	if skipTables[category] {
		return
	}
	if command == Update && updateOnlySkipTables[category] {
		return
	}

	if category == "issuances" && !activation.Enabled(activation.Subassets, f.height) {
		delete(bindings, "asset_longname")
	}
	if category == "sends" && !activation.Enabled(activation.EnhancedSends, f.height) {
		delete(bindings, "memo")
	}

	f.messages = append(f.messages, string(command)+category+sortedBindings(bindings))
}

// sortedBindings renders bindings as Python's sorted(dict.items()) would:
// key-value pairs sorted lexicographically by key, joined as a
// bracket-delimited list of "(key, value)" pairs.
func sortedBindings(bindings map[string]interface{}) string {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("(%s, %v)", k, bindings[k])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Messages returns the feed's accumulated messages in execution order.
func (f *Feed) Messages() []string { return f.messages }

// Hash computes the block-messages hash: SHA-256 over the feed's messages
// joined in execution order. Spec.md §4.8 does not specify a separator;
// this package uses none, matching the original's plain string
// concatenation via BLOCK_MESSAGES.append (the list itself, not a joined
// string, is what gets hashed upstream — here the join is the
// hash-input boundary, made explicit).
func (f *Feed) Hash() string {
	sum := sha256.Sum256([]byte(strings.Join(f.messages, "")))
	return hex.EncodeToString(sum[:])
}

// Package activation implements the indexer's single consensus-sensitive
// ambient dependency: a pure (feature, block_height) -> bool gate. Every
// branch in the codec, format-check, and block-messages packages that
// changed behavior at a historical height consults this table instead of
// carrying its own cutoff constant, so the table doubles as the definitive
// list of every height-gated rule in the protocol.
package activation

// Feature names a single height-gated consensus rule.
type Feature int

const (
	// Subassets gates whether asset_longname participates in block-messages
	// bindings (spec.md §4.8).
	Subassets Feature = iota
	// EnhancedSends gates whether memo participates in block-messages
	// bindings (spec.md §4.8).
	EnhancedSends
	// P2WSH gates strict base64 charset/length validation and the
	// pre-activation numeric leniency in the format check (spec.md §4.2,
	// §4.4).
	P2WSH
	// BMN gates recognition of the 3-byte "BMN" MIME signature (spec.md
	// §4.3).
	BMN
	// StripWhitespace gates left-stripping whitespace before the
	// libmagic-equivalent sniff (spec.md §4.3).
	StripWhitespace
	// SRC20End gates whether a transaction is still eligible for the SRC-20
	// branch at all (spec.md §4.1).
	SRC20End
	// Base64RepairCutoff gates the legacy pad-to-multiple-of-4 "repair"
	// decode mode (spec.md §4.2).
	Base64RepairCutoff
	// BulkXfer gates BULK_XFER holder-expansion (spec.md §9 Open
	// Questions; SPEC_FULL.md supplemented feature 6). Hard-coded to never
	// activate: the height is set to the maximum int64, so Enabled always
	// returns false regardless of block height.
	BulkXfer
)

// never is the activation height used for features that must never fire
// through the public entry points in this implementation.
const never = int64(1<<63 - 1)

// heights is the fixed activation table. It is Go source, not
// configuration: spec.md §9 requires every consensus branch to consult a
// single hard-coded table, never an operator-editable value.
var heights = map[Feature]int64{
	Subassets:          SubassetsHeight,
	EnhancedSends:      EnhancedSendsHeight,
	P2WSH:              P2WSHHeight,
	BMN:                BMNHeight,
	StripWhitespace:    StripWhitespaceHeight,
	SRC20End:           SRC20EndHeight,
	Base64RepairCutoff: Base64RepairCutoffHeight,
	BulkXfer:           never,
}

// Activation heights. These are the mainnet heights at which each feature's
// consensus behavior changed; they are invariant for a given network and
// must never be overridden by operator configuration.
const (
	SubassetsHeight          = 522000
	EnhancedSendsHeight      = 522000
	P2WSHHeight              = 557810
	BMNHeight                = 796000
	StripWhitespaceHeight    = 784000
	SRC20EndHeight           = never
	Base64RepairCutoffHeight = 796100
)

// Enabled reports whether feature is active at height. Most features read
// as "height is on or past the activation height"; Base64RepairCutoff and
// SRC20End are the two exceptions documented below, both upper bounds
// rather than lower bounds.
func Enabled(feature Feature, height int64) bool {
	cutoff, ok := heights[feature]
	if !ok {
		return false
	}
	switch feature {
	case Base64RepairCutoff:
		// "repair" mode is the legacy behavior: active at or below the
		// cutoff, per spec.md §4.2.
		return height <= cutoff
	case SRC20End:
		// the SRC-20 branch is eligible strictly below its end height, per
		// spec.md §4.1.
		return height < cutoff
	default:
		return height >= cutoff
	}
}

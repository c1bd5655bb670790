// Package format implements the SRC-20/SRC-721 payload shape check that
// decides eligibility for the SRC-20 branch without touching balances or
// numbering (spec.md §4.4). It is deliberately permissive about JSON value
// types — the protocol must accept string, int, float, or decimal-shaped
// numeric fields the same way the original parser does — but strict about
// the two things that are consensus-critical: scientific notation and
// range.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/btcstamps/stampindexer/internal/activation"
	"github.com/btcstamps/stampindexer/internal/decimal"
	"github.com/btcstamps/stampindexer/internal/ticknorm"
)

// Op is an SRC-20 operation name, uppercased.
type Op string

const (
	OpDeploy   Op = "DEPLOY"
	OpMint     Op = "MINT"
	OpTransfer Op = "TRANSFER"
	OpBulkXfer Op = "BULK_XFER"
)

// requiredNumericFields lists, per key-set match, which fields must be
// present, numeric, and in range. A payload can match more than one
// key-set (e.g. MINT and TRANSFER share the same shape); every match's
// fields are checked.
var requiredNumericFields = map[string][]string{
	"deploy":    {"max", "lim"},
	"transfer":  {"amt"},
	"mint":      {"amt"},
	"bulk_xfer": {"amt"},
}

var keySets = map[string][]string{
	"deploy":    {"op", "tick", "max", "lim"},
	"transfer":  {"op", "tick", "amt"},
	"mint":      {"op", "tick", "amt"},
	"bulk_xfer": {"op", "tick", "amt", "destinations"},
}

// Result is a payload that passed the format check: either a full SRC-721
// passthrough (Fields holds the raw decoded map) or an SRC-20 payload whose
// numeric fields have already been parsed into decimal.D.
type Result struct {
	Protocol string // "SRC-20" or "SRC-721"
	Tick     string // normalized tick (SRC-20 only)
	Fields   map[string]interface{}
	Numeric  map[string]decimal.D
}

// Check parses payload (bytes, string, or an already-decoded map) and
// determines whether it is a well-formed SRC-20 or SRC-721 payload at
// height. It returns (nil, reason) on any rejection; reason is a short
// EXCLUSION string suitable for logging, never returned to a caller as an
// error — format-check failures are routine, not exceptional.
func Check(payload interface{}, height int64) (*Result, string) {
	decoded, ok := asMap(payload)
	if !ok {
		return nil, "input is not valid JSON"
	}

	p, _ := decoded["p"].(string)
	switch normalizeP(p) {
	case "src-721":
		return &Result{Protocol: "SRC-721", Fields: decoded}, ""
	case "src-20":
		return checkSRC20(decoded, height)
	default:
		return nil, "unrecognized protocol"
	}
}

func normalizeP(p string) string {
	b := []byte(p)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// asMap decodes payload into a field map. Bytes/string payloads are decoded
// with json.Decoder.UseNumber(), matching the original's
// json.loads(..., parse_int=D, parse_float=parse_no_sci_float): every
// unquoted JSON number arrives as a json.Number carrying its original
// literal text, not a float64 that has already lost precision or silently
// absorbed an exponent. A plain json.Unmarshal here would decode every
// bare number as float64 before parseNumeric ever saw the source text,
// making the "reject scientific notation"/"no precision loss at 2^64-1"
// rules impossible to enforce downstream.
func asMap(payload interface{}) (map[string]interface{}, bool) {
	switch v := payload.(type) {
	case map[string]interface{}:
		return v, true
	case []byte:
		return decodeMapUseNumber(v)
	case string:
		return decodeMapUseNumber([]byte(v))
	default:
		return nil, false
	}
}

func decodeMapUseNumber(b []byte) (map[string]interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}
	return m, true
}

func checkSRC20(decoded map[string]interface{}, height int64) (*Result, string) {
	rawTick, _ := decoded["tick"].(string)
	tick := ticknorm.Normalize(rawTick)
	if !ticknorm.Valid(tick) {
		return nil, fmt.Sprintf("tick %q failed pattern/length check", rawTick)
	}

	present := make(map[string]bool, len(decoded))
	for k := range decoded {
		present[k] = true
	}

	numeric := make(map[string]decimal.D)
	for name, keys := range keySets {
		if !hasAll(present, keys) {
			continue
		}
		for _, field := range requiredNumericFields[name] {
			raw, ok := decoded[field]
			if !ok || raw == nil {
				return nil, fmt.Sprintf("missing or invalid value for %s", field)
			}
			d, reason := parseNumeric(raw, height)
			if reason != "" {
				return nil, reason
			}
			numeric[field] = d
		}
	}

	return &Result{Protocol: "SRC-20", Tick: tick, Fields: decoded, Numeric: numeric}, ""
}

func hasAll(present map[string]bool, keys []string) bool {
	for _, k := range keys {
		if !present[k] {
			return false
		}
	}
	return true
}

// parseNumeric converts a decoded JSON value (string, float64, or
// json.Number) to decimal.D, applying the pre-p2wsh digit-stripping
// leniency and rejecting anything out of [0, 2^64-1].
func parseNumeric(raw interface{}, height int64) (decimal.D, string) {
	var d decimal.D
	var err error

	switch v := raw.(type) {
	case string:
		if v == "" {
			d = decimal.Zero()
		} else if activation.Enabled(activation.P2WSH, height) {
			d, err = decimal.Parse(v)
		} else {
			d, err = decimal.ParseDigitsOnly(v)
		}
	case json.Number:
		d, err = decimal.Parse(v.String())
	case float64:
		d, err = decimal.FromFloat64(v)
	default:
		return decimal.D{}, "value not a string, int, or float"
	}

	if err != nil {
		return decimal.D{}, fmt.Sprintf("not a valid decimal: %v", err)
	}
	if !d.InRangeUint64() {
		return decimal.D{}, "value not in range [0, 2^64-1]"
	}
	return d, ""
}

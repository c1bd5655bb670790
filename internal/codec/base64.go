// Package codec implements the consensus-sensitive payload decoding steps
// of the stamp pipeline: base64 decode (strict and legacy "repair" modes),
// MIME sniffing, and the zlib+MessagePack unwrap. Every error here is
// non-fatal — it downgrades classification but never aborts the indexer.
package codec

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/btcstamps/stampindexer/internal/activation"
)

// Validity is the tri-state result of a base64 decode: the payload may be a
// dict that never went through base64 at all (NotApplicable), or a base64
// string that decoded cleanly (Valid) or did not (Invalid).
type Validity int

const (
	NotApplicable Validity = iota
	Valid
	Invalid
)

var base64Charset = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// DecodeBase64 realizes spec.md §4.2's three-way branch on block height.
func DecodeBase64(s string, height int64) ([]byte, Validity) {
	if activation.Enabled(activation.P2WSH, height) {
		if len(s)%4 != 0 || !base64Charset.MatchString(s) {
			return nil, Invalid
		}
	}

	if activation.Enabled(activation.Base64RepairCutoff, height) {
		b, ok := decodeWithRepair(s)
		if !ok {
			return nil, Invalid
		}
		return b, Valid
	}

	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if activation.Enabled(activation.P2WSH, height) {
			// charset/length already validated above; a strict decode
			// failure past that point still downgrades classification.
			return nil, Invalid
		}
		return nil, Invalid
	}
	return b, Valid
}

// decodeWithRepair pads the string with up to 3 '=' to reach a length that
// is a multiple of 4, then decodes. This is the legacy behavior that
// produced corrupted images for malformed input but must be reproduced
// bit-for-bit for consensus at heights <= Base64RepairCutoff.
func decodeWithRepair(s string) ([]byte, bool) {
	if missing := len(s) % 4; missing != 0 {
		s += strings.Repeat("=", 4-missing)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

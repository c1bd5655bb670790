package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/btcstamps/stampindexer/internal/activation"
)

// bmnSignature is the custom 3-byte marker recognized outside the normal
// magic-number table (spec.md §4.3).
var bmnSignature = []byte("BMN")

// Suffix determines the file suffix for decoded payload bytes at height,
// realizing spec.md §4.3's ordered sniff: BMN signature, then JSON probe,
// then a libmagic-equivalent sniffer.
func Suffix(data []byte, height int64) string {
	if activation.Enabled(activation.BMN, height) && bytes.HasPrefix(data, bmnSignature) {
		return "bmn"
	}

	if isJSON(data) {
		return "json"
	}

	probe := data
	if activation.Enabled(activation.StripWhitespace, height) {
		probe = bytes.TrimLeft(data, " \t\n\r\v\f")
	}
	mt := mimetype.Detect(probe)
	full := mt.String()
	if idx := strings.IndexByte(full, '/'); idx >= 0 {
		return full[idx+1:]
	}
	return full
}

// isJSON reports whether data is valid UTF-8 that also parses as JSON,
// mirroring the original's decode-then-json.loads probe.
func isJSON(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	var v interface{}
	return json.Unmarshal(data, &v) == nil
}

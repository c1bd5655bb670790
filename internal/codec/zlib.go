package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// ZlibResult is the outcome of unwrapping a zlib+MessagePack payload: an
// identifier ("UNKNOWN" on any failure), a file suffix ("zlib" on failure,
// "json" on a successful decode whose "p" is a supported protocol, "" when
// "p" is missing or unsupported), and the re-emitted JSON string (or the
// original compressed bytes, on failure).
type ZlibResult struct {
	Ident  string
	Suffix string
	JSON   string
	Raw    []byte
}

// unknownResult is returned for every failure branch below. Every failure
// mode collapses to the same triple, matching the original's three
// identical except clauses.
func unknownResult(compressed []byte) ZlibResult {
	return ZlibResult{Ident: "UNKNOWN", Suffix: "zlib", Raw: compressed}
}

// DecompressAndUnwrap inflates compressed, decodes it as MessagePack, and
// re-serializes it as JSON, realizing spec.md §4.2's zlib+MessagePack→JSON
// unwrap. Any failure at any stage — zlib, MessagePack, or JSON
// incompatibility — downgrades to ("UNKNOWN", "zlib", compressed) rather
// than propagating an error; the pipeline must keep going.
func DecompressAndUnwrap(compressed []byte, logger *zap.Logger) ZlibResult {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		logger.Info("EXCLUSION: error decompressing zlib data", zap.Error(err))
		return unknownResult(compressed)
	}
	defer r.Close()

	uncompressed, err := io.ReadAll(r)
	if err != nil {
		logger.Info("EXCLUSION: error decompressing zlib data", zap.Error(err))
		return unknownResult(compressed)
	}

	var decoded interface{}
	reader := bytes.NewReader(uncompressed)
	dec := msgpack.NewDecoder(reader)
	if err := dec.Decode(&decoded); err != nil {
		logger.Info("EXCLUSION: error decoding MessagePack data", zap.Error(err))
		return unknownResult(compressed)
	}
	// Python's msgpack.unpackb raises ExtraData when bytes remain after the
	// first object; mirror that by rejecting any unconsumed trailer.
	if reader.Len() > 0 {
		logger.Info("EXCLUSION: error decoding MessagePack data: extra data")
		return unknownResult(compressed)
	}

	decoded = normalizeKeys(decoded)

	jsonBytes, err := json.Marshal(decoded)
	if err != nil {
		logger.Info("EXCLUSION: the decoded data is not JSON-compatible", zap.Error(err))
		return unknownResult(compressed)
	}

	ident, suffix := reformatIdent(decoded)
	return ZlibResult{Ident: ident, Suffix: suffix, JSON: string(jsonBytes)}
}

// SupportedSubProtocols are the "p" values that identify a decoded payload
// as carrying a recognized sub-protocol rather than an opaque image.
var SupportedSubProtocols = map[string]bool{
	"SRC-20":  true,
	"SRC-721": true,
}

// reformatIdent lowercases decoded's keys and checks its "p" field against
// SupportedSubProtocols, realizing reformat_src_string_get_ident. Returns
// ("UNKNOWN", "") when decoded isn't a recognized sub-protocol payload.
func reformatIdent(decoded interface{}) (ident, suffix string) {
	m, ok := decoded.(map[string]interface{})
	if !ok {
		return "UNKNOWN", ""
	}
	lower := make(map[string]interface{}, len(m))
	for k, v := range m {
		lower[strings.ToLower(k)] = v
	}
	p, ok := lower["p"].(string)
	if !ok {
		return "UNKNOWN", ""
	}
	upper := strings.ToUpper(p)
	if !SupportedSubProtocols[upper] {
		return "UNKNOWN", ""
	}
	return upper, "json"
}

// normalizeKeys recursively converts map[string]interface{} keys to strings
// and leaves other types untouched. msgpack decodes object keys as
// interface{} when they aren't already strings; JSON marshaling requires
// string keys.
func normalizeKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeKeys(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeKeys(val)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeKeys(val)
		}
		return out
	default:
		return v
	}
}

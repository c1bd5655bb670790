package codec

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

func mustZlibPack(t *testing.T, v interface{}) []byte {
	t.Helper()
	packed, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("msgpack.Marshal: %v", err)
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(packed); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func TestDecompressAndUnwrapSRC20Deploy(t *testing.T) {
	logger := zap.NewNop()
	payload := map[string]interface{}{
		"p":    "src-20",
		"op":   "deploy",
		"tick": "ordi",
		"max":  "21000000",
		"lim":  "1000",
	}
	compressed := mustZlibPack(t, payload)

	result := DecompressAndUnwrap(compressed, logger)
	if result.Ident != "SRC-20" {
		t.Errorf("Ident = %q, want SRC-20", result.Ident)
	}
	if result.Suffix != "json" {
		t.Errorf("Suffix = %q, want json", result.Suffix)
	}
	if result.JSON == "" {
		t.Error("expected non-empty JSON")
	}
}

func TestDecompressAndUnwrapUnrecognizedProtocol(t *testing.T) {
	logger := zap.NewNop()
	compressed := mustZlibPack(t, map[string]interface{}{"foo": "bar"})

	result := DecompressAndUnwrap(compressed, logger)
	if result.Ident != "UNKNOWN" {
		t.Errorf("Ident = %q, want UNKNOWN", result.Ident)
	}
}

func TestDecompressAndUnwrapBadZlibFallsBackToUnknown(t *testing.T) {
	logger := zap.NewNop()
	garbage := []byte{0x00, 0x01, 0x02, 0x03}

	result := DecompressAndUnwrap(garbage, logger)
	if result.Ident != "UNKNOWN" || result.Suffix != "zlib" {
		t.Errorf("got %+v, want UNKNOWN/zlib fallback", result)
	}
	if !bytes.Equal(result.Raw, garbage) {
		t.Errorf("Raw = %x, want original compressed bytes", result.Raw)
	}
}

func TestDecompressAndUnwrapExtraDataFallsBackToUnknown(t *testing.T) {
	logger := zap.NewNop()
	packed, err := msgpack.Marshal(map[string]interface{}{"p": "src-20"})
	if err != nil {
		t.Fatalf("msgpack.Marshal: %v", err)
	}
	packed = append(packed, packed...) // duplicate: extra trailing object

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(packed); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	result := DecompressAndUnwrap(buf.Bytes(), logger)
	if result.Ident != "UNKNOWN" || result.Suffix != "zlib" {
		t.Errorf("got %+v, want UNKNOWN/zlib fallback for extra data", result)
	}
}

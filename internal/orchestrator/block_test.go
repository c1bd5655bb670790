package orchestrator

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/btcstamps/stampindexer/internal/format"
	"github.com/btcstamps/stampindexer/internal/upstream"
)

func TestParseDecAcceptsInRangeValues(t *testing.T) {
	for _, tc := range []struct {
		raw  interface{}
		want int
	}{
		{float64(0), 0},
		{float64(18), 18},
		{json.Number("7"), 7},
		{"12", 12},
	} {
		got, ok := parseDec(tc.raw)
		if !ok || got != tc.want {
			t.Errorf("parseDec(%v) = (%d, %v), want (%d, true)", tc.raw, got, ok, tc.want)
		}
	}
}

func TestParseDecRejectsOutOfRangeValues(t *testing.T) {
	for _, raw := range []interface{}{float64(19), json.Number("19"), "19", float64(-1), "-1", float64(1.5)} {
		if _, ok := parseDec(raw); ok {
			t.Errorf("parseDec(%v) = ok=true, want rejection (dec must be in [0,18])", raw)
		}
	}
}

func TestRecordFromResultLeavesDecAbsentWhenOutOfRange(t *testing.T) {
	r := &format.Result{
		Tick:   "ordi",
		Fields: map[string]interface{}{"op": "deploy", "dec": json.Number("19")},
	}
	tx := upstream.TransactionCandidate{TxHash: "abc", SourceAddress: "addrA", DestAddress: "addrB"}

	rec, ok := recordFromResult(r, tx, 0, 0)
	if !ok {
		t.Fatal("expected recordFromResult to recognize DEPLOY")
	}
	if rec.DecPresent {
		t.Error("DecPresent should be false when the supplied dec is out of [0,18] range")
	}
}

func TestRecordFromResultReadsUnquotedDecAsJSONNumber(t *testing.T) {
	payload := []byte(`{"p":"src-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":6}`)
	decoded := map[string]interface{}{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := &format.Result{Tick: "ordi", Fields: decoded}
	tx := upstream.TransactionCandidate{TxHash: "abc"}

	rec, ok := recordFromResult(r, tx, 0, 0)
	if !ok {
		t.Fatal("expected recordFromResult to recognize DEPLOY")
	}
	if !rec.DecPresent || rec.Dec != 6 {
		t.Errorf("Dec = (%d, present=%v), want (6, true)", rec.Dec, rec.DecPresent)
	}
}

package stamp

import (
	"strings"
	"testing"

	"github.com/btcstamps/stampindexer/internal/decimal"
	"github.com/btcstamps/stampindexer/internal/format"
)

func deployResult(max, lim string) *format.Result {
	d := map[string]decimal.D{}
	if v, err := decimal.Parse(max); err == nil {
		d["max"] = v
	}
	if v, err := decimal.Parse(lim); err == nil {
		d["lim"] = v
	}
	return &format.Result{
		Fields: map[string]interface{}{
			"p": "src-20", "op": "deploy", "tick": "test",
		},
		Numeric: d,
	}
}

func TestCanonicalTokenJSONKeyOrder(t *testing.T) {
	got := CanonicalTokenJSON(deployResult("1000", "100"))

	order := []string{"p", "op", "tick", "max", "lim"}
	lastIdx := -1
	for _, k := range order {
		idx := strings.Index(got, `"`+k+`"`)
		if idx == -1 {
			t.Fatalf("key %q missing from output:\n%s", k, got)
		}
		if idx <= lastIdx {
			t.Fatalf("key %q out of order (idx %d <= previous %d):\n%s", k, idx, lastIdx, got)
		}
		lastIdx = idx
	}
}

func TestCanonicalTokenJSONUppercasesPOpTick(t *testing.T) {
	got := CanonicalTokenJSON(deployResult("1000", "100"))
	for _, want := range []string{`"p": "SRC-20"`, `"op": "DEPLOY"`, `"tick": "TEST"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestCanonicalTokenJSONNumericFieldsAreQuotedStrings(t *testing.T) {
	got := CanonicalTokenJSON(deployResult("1000", "100"))
	if !strings.Contains(got, `"max": "1000"`) || !strings.Contains(got, `"lim": "100"`) {
		t.Errorf("expected quoted numeric fields (json.dumps default=str), got:\n%s", got)
	}
}

func TestCanonicalTokenJSONMintWhitelistsAmtOnly(t *testing.T) {
	amt, _ := decimal.Parse("5")
	result := &format.Result{
		Fields:  map[string]interface{}{"p": "SRC-20", "op": "MINT", "tick": "aaa"},
		Numeric: map[string]decimal.D{"amt": amt},
	}
	got := CanonicalTokenJSON(result)
	if !strings.Contains(got, `"amt": "5"`) {
		t.Errorf("expected amt field, got:\n%s", got)
	}
	if strings.Contains(got, "max") || strings.Contains(got, "lim") {
		t.Errorf("MINT must not include max/lim, got:\n%s", got)
	}
}

func TestCanonicalTokenJSONUnknownOpYieldsEmptyObject(t *testing.T) {
	result := &format.Result{
		Fields: map[string]interface{}{"p": "SRC-20", "op": "BOGUS", "tick": "aaa"},
	}
	if got := CanonicalTokenJSON(result); got != "{}" {
		t.Errorf("expected {} for unrecognized op, got:\n%s", got)
	}
}

func TestCanonicalTokenJSONDoesNotEscapeUnicode(t *testing.T) {
	amt, _ := decimal.Parse("1")
	result := &format.Result{
		Fields:  map[string]interface{}{"p": "SRC-20", "op": "MINT", "tick": "日本"},
		Numeric: map[string]decimal.D{"amt": amt},
	}
	got := CanonicalTokenJSON(result)
	if !strings.Contains(got, "日本") {
		t.Errorf("expected literal UTF-8, not escaped, got:\n%s", got)
	}
	if strings.Contains(got, `\u`) {
		t.Errorf("unexpected \\u escape in output:\n%s", got)
	}
}

func TestWrapSVGFixedViewBoxAndGradientFallback(t *testing.T) {
	out := WrapSVG(`{"p":"SRC-20"}`, "", "", "", false)
	if !strings.Contains(out, `viewBox="0 0 420 420"`) {
		t.Errorf("expected fixed viewBox, got:\n%s", out)
	}
	if !strings.Contains(out, `font-size="30px"`) {
		t.Error("expected hard-coded 30px font-size fallback when no background asset is configured")
	}
	if !strings.Contains(out, "linear-gradient(138deg, rgba(149,56,182,1) 23%, rgba(0,56,255,1) 100%)") {
		t.Error("expected the original gradient background fallback")
	}
	if !strings.Contains(out, "<pre>{\"p\":\"SRC-20\"}</pre>") {
		t.Error("expected token JSON wrapped in <pre>")
	}
}

func TestWrapSVGWithBackground(t *testing.T) {
	out := WrapSVG(`{"p":"SRC-20"}`, "image/png;base64,AAAA", "18px", "#112233", true)
	if !strings.Contains(out, "background-image: url(data:image/png;base64,AAAA)") {
		t.Errorf("expected background-image style, got:\n%s", out)
	}
	if !strings.Contains(out, `font-size="18px"`) {
		t.Error("expected configured font size")
	}
	if !strings.Contains(out, "color:#112233") {
		t.Error("expected configured text color")
	}
	if strings.Contains(out, "linear-gradient") {
		t.Error("should not fall back to gradient when a background is configured")
	}
}

package decimal

import "testing"

func TestParseRejectsScientificNotation(t *testing.T) {
	for _, s := range []string{"1e3", "1E3", "1.5e-2", "2e+10"} {
		if _, err := Parse(s); err != ErrScientificNotation {
			t.Errorf("Parse(%q) error = %v, want ErrScientificNotation", s, err)
		}
	}
}

func TestParsePlainValues(t *testing.T) {
	d, err := Parse("123.450")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Normalize().String() != "123.45" {
		t.Errorf("got %s, want 123.45", d.Normalize().String())
	}
}

func TestParseDigitsOnlyStripsJunk(t *testing.T) {
	d, err := ParseDigitsOnly("1,000.50abc")
	if err != nil {
		t.Fatalf("ParseDigitsOnly: %v", err)
	}
	if d.String() != "1000.5" {
		t.Errorf("got %s, want 1000.5", d.String())
	}
}

func TestParseDigitsOnlyRejectsScientificNotationBeforeStripping(t *testing.T) {
	// Stripping non-digit characters before checking for "e"/"E" would
	// silently turn "1e3" into "13" instead of excluding it.
	for _, s := range []string{"1e3", "1E3"} {
		if _, err := ParseDigitsOnly(s); err != ErrScientificNotation {
			t.Errorf("ParseDigitsOnly(%q) error = %v, want ErrScientificNotation", s, err)
		}
	}
}

func TestInRangeUint64Boundary(t *testing.T) {
	max, _ := Parse("18446744073709551615")
	if !max.InRangeUint64() {
		t.Error("2^64-1 should be in range")
	}
	over, _ := Parse("18446744073709551616")
	if over.InRangeUint64() {
		t.Error("2^64 should not be in range")
	}
	neg, _ := Parse("-1")
	if neg.InRangeUint64() {
		t.Error("negative value should not be in range")
	}
}

func TestQuantizeDownTruncates(t *testing.T) {
	d, _ := Parse("19.999")
	if got := d.QuantizeDown().String(); got != "19" {
		t.Errorf("QuantizeDown(19.999) = %s, want 19", got)
	}
	neg, _ := Parse("-19.999")
	if got := neg.QuantizeDown().String(); got != "-19" {
		t.Errorf("QuantizeDown(-19.999) = %s, want -19 (truncate toward zero)", got)
	}
}

func TestDecimalPlaces(t *testing.T) {
	cases := map[string]int{
		"1":       0,
		"1.0":     0,
		"1.5":     1,
		"1.230":   2,
		"0":       0,
		"100.000": 0,
	}
	for in, want := range cases {
		d, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got := d.DecimalPlaces(); got != want {
			t.Errorf("DecimalPlaces(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatCanonical(t *testing.T) {
	cases := map[string]string{
		"0":        "0",
		"0.0":      "0",
		"100":      "100",
		"100.500":  "100.5",
		"0.000001": "0.000001",
	}
	for in, want := range cases {
		d, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got := d.FormatCanonical(); got != want {
			t.Errorf("FormatCanonical(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestMinPicksSmaller(t *testing.T) {
	a, _ := Parse("100")
	b, _ := Parse("50")
	if got := a.Min(b).String(); got != "50" {
		t.Errorf("Min(100,50) = %s, want 50", got)
	}
	if got := b.Min(a).String(); got != "50" {
		t.Errorf("Min(50,100) = %s, want 50", got)
	}
}

package ledgerhash

import "testing"

func TestCanonicalStringSortsByTickThenAddress(t *testing.T) {
	entries := []Entry{
		{Tick: "zzz", Address: "a1", Amt: "5"},
		{Tick: "ordi", Address: "b2", Amt: "10"},
		{Tick: "ordi", Address: "a1", Amt: "100"},
	}
	got := CanonicalString(entries)
	want := "ordi,a1,100;ordi,b2,10;zzz,a1,5"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalStringEmpty(t *testing.T) {
	if got := CanonicalString(nil); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestHashDeterministicAndOrderIndependent(t *testing.T) {
	a := []Entry{{Tick: "ordi", Address: "x", Amt: "1"}, {Tick: "ordi", Address: "y", Amt: "2"}}
	b := []Entry{{Tick: "ordi", Address: "y", Amt: "2"}, {Tick: "ordi", Address: "x", Amt: "1"}}

	if Hash(a) != Hash(b) {
		t.Error("hash should not depend on input order")
	}
	if len(Hash(a)) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(Hash(a)))
	}
}

func TestHashChangesWithDifferentAmounts(t *testing.T) {
	a := []Entry{{Tick: "ordi", Address: "x", Amt: "1"}}
	b := []Entry{{Tick: "ordi", Address: "x", Amt: "2"}}
	if Hash(a) == Hash(b) {
		t.Error("different amounts should produce different hashes")
	}
}

func TestParseCanonicalStringRoundTrips(t *testing.T) {
	entries := []Entry{
		{Tick: "ordi", Address: "a1", Amt: "100"},
		{Tick: "ordi", Address: "b2", Amt: "10"},
	}
	s := CanonicalString(entries)
	got := ParseCanonicalString(s)
	if len(got) != 2 || got[0] != entries[0] || got[1] != entries[1] {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, entries)
	}
}

func TestParseCanonicalStringEmpty(t *testing.T) {
	if got := ParseCanonicalString(""); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestParseCanonicalStringSkipsMalformedSegments(t *testing.T) {
	got := ParseCanonicalString("ordi,a1,100;malformed;ordi,b2,10")
	if len(got) != 2 {
		t.Errorf("got %d entries, want 2 (malformed segment skipped)", len(got))
	}
}

package ticknorm

import "testing"

func TestNormalizeLowercases(t *testing.T) {
	if got := Normalize("ORDI"); got != "ordi" {
		t.Errorf("Normalize(ORDI) = %q, want ordi", got)
	}
}

func TestEscapeNonASCII(t *testing.T) {
	got := Escape("k\u00e9vin")
	want := `k\u00e9vin`
	if got != want {
		t.Errorf("Escape = %q, want %q", got, want)
	}
}

func TestEscapeLeavesASCIIAlone(t *testing.T) {
	if got := Escape("ordi"); got != "ordi" {
		t.Errorf("Escape(ordi) = %q, want ordi", got)
	}
}

func TestValidRejectsEmptyAndOverlong(t *testing.T) {
	if Valid("") {
		t.Error("empty tick should be invalid")
	}
	if Valid("toolong") {
		t.Error("7-char tick should be invalid")
	}
	if !Valid("ordi") {
		t.Error("4-char tick should be valid")
	}
	if !Valid("kevin") {
		t.Error("5-char tick should be valid")
	}
}

func TestHashIsDeterministicSHA3(t *testing.T) {
	got := Hash("ordi")
	if len(got) != 64 {
		t.Fatalf("Hash length = %d, want 64 hex chars", len(got))
	}
	if got != Hash("ordi") {
		t.Error("Hash must be deterministic")
	}
	if Hash("ordi") == Hash("kevin") {
		t.Error("different ticks must not collide")
	}
}

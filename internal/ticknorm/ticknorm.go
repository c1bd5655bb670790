// Package ticknorm normalizes and hashes SRC-20 tick values. Every op that
// carries a tick — DEPLOY, MINT, TRANSFER — runs its tick through Normalize
// before any balance or uniqueness lookup, so two stamps spelling the same
// tick with different case or escaping land on the same ledger row.
package ticknorm

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// MaxLength is the maximum tick length in runes, post-normalization.
const MaxLength = 5

// tickClass matches the characters a normalized tick may contain: any
// printable ASCII character (0x20-0x7e), which covers the unicode-escape
// syntax produced by Escape.
var tickClass = regexp.MustCompile(`^[\x20-\x7e]*$`)

// Normalize lowercases value and escapes any non-ASCII character, matching
// Src20Validator._process_tick_value.
func Normalize(value string) string {
	return Escape(strings.ToLower(value))
}

// Escape replaces every rune outside the printable ASCII range with its
// Go-syntax unicode escape (\uXXXX, or \UXXXXXXXX for runes above the BMP),
// the normalization step that keeps ticks comparable and storable as plain
// text regardless of the script used to write them.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
			continue
		}
		if r > 0xffff {
			fmt.Fprintf(&b, `\U%08x`, r)
		} else {
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String()
}

// Valid reports whether a normalized tick satisfies the tick character
// class and length constraints (spec.md §4.4).
func Valid(normalized string) bool {
	if normalized == "" || len([]rune(normalized)) > MaxLength {
		return false
	}
	return tickClass.MatchString(normalized)
}

// Hash computes the tick_hash field: the NIST SHA3-256 digest (not
// Keccak-256) of the normalized tick's lowercase form, hex-encoded. The
// original source lowercases the raw value again before hashing rather
// than hashing the escaped form, so Hash takes the pre-escape lowercase
// tick, not the output of Normalize.
func Hash(lowercaseTick string) string {
	sum := sha3.Sum256([]byte(lowercaseTick))
	return fmt.Sprintf("%x", sum)
}

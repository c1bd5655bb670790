package stamp

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// base62Encode renders n in base62 using the digit ordering
// create_base62_hash's alphabet defines: digits, then lowercase, then
// uppercase. The result is most-significant-digit first.
func base62Encode(n *big.Int) string {
	if n.Sign() == 0 {
		return string(base62Alphabet[0])
	}
	base := big.NewInt(int64(len(base62Alphabet)))
	zero := big.NewInt(0)
	rem := new(big.Int)
	quotient := new(big.Int).Set(n)

	var digits []byte
	for quotient.Cmp(zero) > 0 {
		quotient.DivMod(quotient, base, rem)
		digits = append(digits, base62Alphabet[rem.Int64()])
	}
	// digits were appended least-significant first; reverse.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// DeriveCPID computes the 20-character base62 digest of
// SHA-256(txHash ∥ "|" ∥ blockHeight), prefix-stable per spec.md §4.2:
// the result is always the first 20 characters of the full base62
// encoding of the digest, so truncating a longer length would only ever
// extend, never change, this string.
func DeriveCPID(txHash string, blockHeight int64) string {
	combined := txHash + "|" + strconv.FormatInt(blockHeight, 10)
	sum := sha256.Sum256([]byte(combined))
	n := new(big.Int).SetBytes(sum[:])
	encoded := base62Encode(n)
	if len(encoded) > 20 {
		return encoded[:20]
	}
	return encoded
}

// CPID returns the stamp's CPID: upstreamCPID verbatim if non-empty,
// otherwise the derived base62 digest (spec.md §4.2 step 3).
func CPID(upstreamCPID, txHash string, blockHeight int64) string {
	if upstreamCPID != "" {
		return upstreamCPID
	}
	return DeriveCPID(txHash, blockHeight)
}

// FormatAddress truncates an address to "XXXX...YYYY" for human-facing
// log/status strings only (SPEC_FULL.md supplemented feature 3; grounded
// on src20.py's format_address). It never affects a hash or stored
// record.
func FormatAddress(address string) string {
	if len(address) <= 8 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:4], address[len(address)-4:])
}

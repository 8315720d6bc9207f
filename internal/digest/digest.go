// Package digest wraps the fixed 256-bit hash used throughout the beacon.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Algorithm is the identifier recorded next to every digest.
const Algorithm = "sha256"

// HexLen is the length of a hex-encoded digest.
const HexLen = sha256.Size * 2

var hexDigestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumString hashes the UTF-8 bytes of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// IsHexDigest reports whether s has the shape of a lowercase hex digest
// produced by Sum.
func IsHexDigest(s string) bool {
	return hexDigestPattern.MatchString(s)
}

// Iterate applies Sum n times starting from seed, hashing the lowercase hex
// text of the previous round on every round. With n <= 0 it returns seed
// unchanged.
func Iterate(seed []byte, n int) string {
	if n <= 0 {
		return string(seed)
	}
	var buf [HexLen]byte
	in := seed
	for i := 0; i < n; i++ {
		sum := sha256.Sum256(in)
		hex.Encode(buf[:], sum[:])
		in = buf[:]
	}
	return string(buf[:])
}

// Package crypto provides the primitive operations the receipt core signs
// and verifies with: SHA-256 hex digests, a permissive base64 codec, and
// Ed25519 signing/verification keyed by a deterministic key id (kid).
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256HexBytes is the []byte counterpart of SHA256Hex.
func SHA256HexBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

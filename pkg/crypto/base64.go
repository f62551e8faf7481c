package crypto

import (
	"encoding/base64"
	"fmt"
)

// EncodeBase64 returns the standard, padded RFC 4648 base64 encoding of b.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 accepts standard RFC 4648 base64 input with or without "="
// padding and rejects any character outside the canonical alphabet.
func DecodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid base64 input: %w", err)
	}
	return b, nil
}

package crypto

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Signature is the structured result of a signing attempt.
type Signature struct {
	Alg       string // "Ed25519" or "none"
	Kid       string
	SigBase64 string
}

// UnsignedField is the sentinel written when no signing key is configured.
const UnsignedField = "UNSIGNED"

// KeyStore is a capability value carrying the signing key (if any), a
// fallback single verification key, and a kid-keyed rotation map. It is
// constructed explicitly and passed to callers — never a process-global
// singleton — so tests can build isolated stores (spec.md §9).
type KeyStore struct {
	signPriv  ed25519.PrivateKey
	signPub   ed25519.PublicKey
	hasSign   bool
	singlePub ed25519.PublicKey
	hasSingle bool
	keyMap    map[string]ed25519.PublicKey
}

// KeyStoreOption configures a KeyStore via NewKeyStore.
type KeyStoreOption func(*KeyStore)

// WithSigningKey configures the key used by Sign/SignField.
func WithSigningKey(priv ed25519.PrivateKey) KeyStoreOption {
	return func(k *KeyStore) {
		if len(priv) == 0 {
			return
		}
		k.signPriv = priv
		k.signPub = priv.Public().(ed25519.PublicKey)
		k.hasSign = true
	}
}

// WithSingleKey configures the fallback verification key.
func WithSingleKey(pub ed25519.PublicKey) KeyStoreOption {
	return func(k *KeyStore) {
		if len(pub) == 0 {
			return
		}
		k.singlePub = pub
		k.hasSingle = true
	}
}

// WithKeyMap configures the kid-rotation map.
func WithKeyMap(m map[string]ed25519.PublicKey) KeyStoreOption {
	return func(k *KeyStore) {
		if len(m) == 0 {
			return
		}
		k.keyMap = m
	}
}

// NewKeyStore builds a KeyStore from explicit options.
func NewKeyStore(opts ...KeyStoreOption) *KeyStore {
	k := &KeyStore{}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// GenerateKeyStore creates a fresh random Ed25519 keypair, used as both the
// signing key and the single verification key. Convenient for tests and
// for operators bootstrapping a new deployment.
func GenerateKeyStore() (*KeyStore, error) {
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate keypair: %w", err)
	}
	return NewKeyStore(WithSigningKey(priv), WithSingleKey(pub)), nil
}

// Kid returns the key id for a public key: the SHA-256 hex digest of the
// hex-encoded public key bytes.
func Kid(pub ed25519.PublicKey) string {
	return SHA256Hex(hex.EncodeToString(pub))
}

// SigningKid returns the kid of the configured signing key, or "" if none.
func (k *KeyStore) SigningKid() string {
	if !k.hasSign {
		return ""
	}
	return Kid(k.signPub)
}

// Sign signs payload with the configured signing key. If no signing key is
// configured, it returns {Alg: "none"} so the pipeline degrades cleanly.
func (k *KeyStore) Sign(payload []byte) Signature {
	if !k.hasSign {
		return Signature{Alg: "none"}
	}
	sig := ed25519.Sign(k.signPriv, payload)
	return Signature{
		Alg:       "Ed25519",
		Kid:       Kid(k.signPub),
		SigBase64: EncodeBase64(sig),
	}
}

// SignField signs payload and returns it serialized as
// "Ed25519:<kid>:<base64-sig>" or "UNSIGNED".
func (k *KeyStore) SignField(payload []byte) string {
	return FormatSignatureField(k.Sign(payload))
}

// FormatSignatureField serializes a Signature per spec.md §4.3.
func FormatSignatureField(sig Signature) string {
	if sig.Alg != "Ed25519" {
		return UnsignedField
	}
	return fmt.Sprintf("Ed25519:%s:%s", sig.Kid, sig.SigBase64)
}

// ParseSignatureField splits a "Ed25519:<kid>:<b64>" field into its parts.
// Only that exact three-part Ed25519 form is accepted; the "UNSIGNED"
// sentinel and any other shape (including legacy "SHA256:<b64>" hashes or
// bare identifiers) return ok=false without attempting verification, per
// spec.md §9's Open Question resolution.
func ParseSignatureField(field string) (kid, sigBase64 string, ok bool) {
	if field == "" || field == UnsignedField {
		return "", "", false
	}
	parts := strings.SplitN(field, ":", 3)
	if len(parts) != 3 || parts[0] != "Ed25519" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// VerifyField parses and verifies a serialized signature field against
// payload. Any malformed field (including UNSIGNED) verifies false without
// attempting cryptographic verification.
func (k *KeyStore) VerifyField(payload []byte, field string) bool {
	kid, sigB64, ok := ParseSignatureField(field)
	if !ok {
		return false
	}
	sig, err := DecodeBase64(sigB64)
	if err != nil {
		return false
	}
	return k.Verify(payload, sig, kid)
}

// Verify resolves a public key for kid and checks sig against payload.
//
// Resolution order (spec.md §3, §4.1):
//  1. If a rotation map is configured and lists kid, verify against that key.
//  2. If the map is configured but does not list kid, fall back to the
//     single configured key and verify regardless of kid (rotation grace
//     period: a presented kid that predates the map is still honoured).
//  3. If no map is configured at all (single-key-only deployment), the
//     presented kid MUST equal the single key's own derived kid — a wrong
//     kid fails even though the signature bytes would verify, so a kid
//     cannot be forged in a minimal deployment.
//  4. Otherwise (no key available), verification fails.
func (k *KeyStore) Verify(payload, sig []byte, kid string) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	mapConfigured := len(k.keyMap) > 0
	if mapConfigured {
		if pub, ok := k.keyMap[kid]; ok {
			return ed25519.Verify(pub, payload, sig)
		}
		if k.hasSingle {
			return ed25519.Verify(k.singlePub, payload, sig)
		}
		return false
	}
	if k.hasSingle {
		if kid != Kid(k.singlePub) {
			return false
		}
		return ed25519.Verify(k.singlePub, payload, sig)
	}
	return false
}

// LoadKeyStoreFromEnv builds a KeyStore from the environment variables of
// spec.md §6: ED25519_PRIVATE_KEY_BASE64, ED25519_PUBLIC_KEY_BASE64, and
// ED25519_KEYS_JSON (a {kid: base64-pub} map).
func LoadKeyStoreFromEnv() (*KeyStore, error) {
	var opts []KeyStoreOption

	if raw := os.Getenv("ED25519_PRIVATE_KEY_BASE64"); raw != "" {
		priv, err := DecodeBase64(raw)
		if err != nil {
			return nil, fmt.Errorf("crypto: ED25519_PRIVATE_KEY_BASE64: %w", err)
		}
		if len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("crypto: ED25519_PRIVATE_KEY_BASE64: expected %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
		}
		opts = append(opts, WithSigningKey(ed25519.PrivateKey(priv)))
	}

	if raw := os.Getenv("ED25519_PUBLIC_KEY_BASE64"); raw != "" {
		pub, err := DecodeBase64(raw)
		if err != nil {
			return nil, fmt.Errorf("crypto: ED25519_PUBLIC_KEY_BASE64: %w", err)
		}
		if len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("crypto: ED25519_PUBLIC_KEY_BASE64: expected %d bytes, got %d", ed25519.PublicKeySize, len(pub))
		}
		opts = append(opts, WithSingleKey(ed25519.PublicKey(pub)))
	}

	if raw := os.Getenv("ED25519_KEYS_JSON"); raw != "" {
		var encoded map[string]string
		if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
			return nil, fmt.Errorf("crypto: ED25519_KEYS_JSON: %w", err)
		}
		m := make(map[string]ed25519.PublicKey, len(encoded))
		for kid, b64 := range encoded {
			pub, err := DecodeBase64(b64)
			if err != nil {
				return nil, fmt.Errorf("crypto: ED25519_KEYS_JSON[%s]: %w", kid, err)
			}
			if len(pub) != ed25519.PublicKeySize {
				return nil, fmt.Errorf("crypto: ED25519_KEYS_JSON[%s]: expected %d bytes, got %d", kid, ed25519.PublicKeySize, len(pub))
			}
			m[kid] = ed25519.PublicKey(pub)
		}
		opts = append(opts, WithKeyMap(m))
	}

	return NewKeyStore(opts...), nil
}

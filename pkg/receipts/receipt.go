// Package receipts implements the receipt and ticket data model of
// spec.md §3–§4: canonical subject serialization, dual-signer Ed25519
// attachment, shard-derived Merkle commitments, and the verification
// algorithm shared by the online service (pkg/ticketapi) and the offline
// CLI (cmd/helm).
package receipts

import (
	"strings"

	"github.com/symbi-labs/ticket-core/pkg/crypto"
)

// ReceiptVersion is the fixed version stamped on every issued receipt.
const ReceiptVersion = "1.0"

// Receipt is the immutable record bound to a declared machine-generated
// output (spec.md §3). The five sub-receipts are carried as opaque byte
// payloads — the core never interprets their contents, only hashes and
// signs around them.
type Receipt struct {
	ReceiptVersion  string `json:"receipt_version"`
	TenantID        string `json:"tenant_id"`
	ConversationID  string `json:"conversation_id"`
	OutputID        string `json:"output_id"`
	CreatedAt       string `json:"created_at"` // RFC3339 UTC
	Model           string `json:"model"`
	PolicyPack      string `json:"policy_pack"`
	ShardHashes     []string        `json:"shard_hashes"`
	RealityReceipt  RawSubReceipt   `json:"reality_receipt"`
	TrustReceipt    RawSubReceipt   `json:"trust_receipt"`
	EthicsReceipt   RawSubReceipt   `json:"ethics_receipt"`
	ResonanceReceipt RawSubReceipt  `json:"resonance_receipt"`
	ParityReceipt   RawSubReceipt   `json:"parity_receipt"`
	Signatures      SignaturePair   `json:"signatures"`
}

// RawSubReceipt is an opaque payload carried by reference; the receipt
// core never interprets it (spec.md §1 Non-goals, §9 design note).
type RawSubReceipt map[string]any

// SignaturePair is the dual control-plane/agent signature attached to a
// Receipt. Each field is either "Ed25519:<kid>:<base64-sig>" or the
// sentinel "UNSIGNED".
type SignaturePair struct {
	ControlPlane string `json:"control_plane"`
	Agent        string `json:"agent"`
}

// Subject returns the canonical byte payload signed by both planes
// (spec.md §4.3): the UTF-8 bytes of the hex SHA-256 digest of the
// pipe-joined field concatenation, in this exact order:
// receipt_version|tenant_id|conversation_id|output_id|created_at|model|
// policy_pack|comma-joined shard_hashes.
func (r Receipt) Subject() []byte {
	joined := strings.Join([]string{
		r.ReceiptVersion,
		r.TenantID,
		r.ConversationID,
		r.OutputID,
		r.CreatedAt,
		r.Model,
		r.PolicyPack,
		strings.Join(r.ShardHashes, ","),
	}, "|")
	return []byte(crypto.SHA256Hex(joined))
}

// Sign attaches both the control-plane and agent signatures over the same
// subject bytes, per spec.md §4.3 ("both signatures sign the same
// subject"). A single KeyStore plays both roles here — callers wanting
// genuinely independent planes construct the receipt with two KeyStores
// and call SignField directly per plane.
func (r *Receipt) Sign(ks *crypto.KeyStore) {
	subject := r.Subject()
	field := ks.SignField(subject)
	r.Signatures.ControlPlane = field
	r.Signatures.Agent = field
}

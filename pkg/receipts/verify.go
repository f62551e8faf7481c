package receipts

import (
	"github.com/symbi-labs/ticket-core/pkg/crypto"
	"github.com/symbi-labs/ticket-core/pkg/merkle"
)

// Checks is the per-check breakdown of a verification verdict.
type Checks struct {
	MerkleOk   bool `json:"merkleOk"`
	ProofOk    bool `json:"proofOk"`
	SigCtrlOk  bool `json:"sigCtrlOk"`
	SigAgentOk bool `json:"sigAgentOk"`
}

// Verdict is the structured result spec.md §4.7/§4.8/§8 requires from
// both the online service and the offline CLI.
type Verdict struct {
	Valid bool   `json:"valid"`
	Checks Checks `json:"checks"`
	Root   string `json:"root"`
	Error  string `json:"error,omitempty"`
}

// Verify runs steps 3–6 of spec.md §4.7 against a ticket: it recomputes
// the Merkle root from shard_hashes, verifies every per-leaf proof,
// verifies both inner receipt signatures, and aggregates
// valid = merkleOk && proofOk && (sigCtrlOk || sigAgentOk). It does not
// consult revocation state — callers needing that (the HTTP service) must
// check first and short-circuit before calling Verify, exactly as the
// offline CLI (which has no revocation state to consult) does not.
func Verify(t Ticket, ks *crypto.KeyStore) Verdict {
	receipt := t.Receipts.Sybi
	recomputedRoot := merkle.Root(receipt.ShardHashes)
	merkleOk := recomputedRoot == t.Receipts.MerkleRoot

	proofOk := true
	for _, p := range t.Receipts.MerkleProofs {
		if !merkle.VerifyProof(p, t.Receipts.MerkleRoot) {
			proofOk = false
			break
		}
	}

	subject := receipt.Subject()
	sigCtrlOk := ks.VerifyField(subject, receipt.Signatures.ControlPlane)
	sigAgentOk := ks.VerifyField(subject, receipt.Signatures.Agent)

	valid := merkleOk && proofOk && (sigCtrlOk || sigAgentOk)

	return Verdict{
		Valid: valid,
		Checks: Checks{
			MerkleOk:   merkleOk,
			ProofOk:    proofOk,
			SigCtrlOk:  sigCtrlOk,
			SigAgentOk: sigAgentOk,
		},
		Root: t.Receipts.MerkleRoot,
	}
}

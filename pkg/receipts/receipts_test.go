package receipts

import (
	"testing"

	"github.com/symbi-labs/ticket-core/pkg/crypto"
	"github.com/symbi-labs/ticket-core/pkg/merkle"
)

// TestSubjectLiteralFixture pins the literal subject string from spec.md
// §8 scenario 1.
func TestSubjectLiteralFixture(t *testing.T) {
	r := Receipt{
		ReceiptVersion: "1.0",
		TenantID:       "t1",
		ConversationID: "c1",
		OutputID:       "o1",
		CreatedAt:      "2024-01-01T00:00:00Z",
		Model:          "m1",
		PolicyPack:     "pp1",
		ShardHashes:    []string{"61", "62", "63", "64"},
	}
	want := crypto.SHA256Hex("1.0|t1|c1|o1|2024-01-01T00:00:00Z|m1|pp1|61,62,63,64")
	if got := string(r.Subject()); got != want {
		t.Errorf("Subject() = %q, want %q", got, want)
	}
}

func fixedKeyStore(t *testing.T) *crypto.KeyStore {
	t.Helper()
	ks, err := crypto.GenerateKeyStore()
	if err != nil {
		t.Fatalf("GenerateKeyStore: %v", err)
	}
	return ks
}

// TestBuildTicketHappyPath mirrors spec.md §8 end-to-end scenario 1.
func TestBuildTicketHappyPath(t *testing.T) {
	ks := fixedKeyStore(t)
	req := BuildRequest{
		TenantID:        "t1",
		ConversationID:  "c1",
		OutputID:        "o1",
		CreatedAt:       "2024-01-01T00:00:00Z",
		Model:           "m1",
		PolicyPack:      "pp1",
		ShardFunc:       func(any) ([][]byte, error) { return [][]byte{{'a'}, {'b'}, {'c'}, {'d'}}, nil },
		ControlPlaneKeys: ks,
		AgentKeys:        ks,
	}
	ticket, err := BuildTicket(req)
	if err != nil {
		t.Fatalf("BuildTicket: %v", err)
	}

	wantRoot := merkle.Root([]string{
		crypto.SHA256HexBytes([]byte{'a'}),
		crypto.SHA256HexBytes([]byte{'b'}),
		crypto.SHA256HexBytes([]byte{'c'}),
		crypto.SHA256HexBytes([]byte{'d'}),
	})
	if ticket.Receipts.MerkleRoot != wantRoot {
		t.Errorf("MerkleRoot = %q, want %q", ticket.Receipts.MerkleRoot, wantRoot)
	}

	verdict := Verify(*ticket, ks)
	if !verdict.Valid {
		t.Fatalf("expected valid verdict, got %+v", verdict)
	}
	if !verdict.Checks.MerkleOk || !verdict.Checks.ProofOk || !verdict.Checks.SigCtrlOk || !verdict.Checks.SigAgentOk {
		t.Errorf("expected all checks true, got %+v", verdict.Checks)
	}
}

// TestVerifyTamperedSibling mirrors spec.md §8 scenario 2.
func TestVerifyTamperedSibling(t *testing.T) {
	ks := fixedKeyStore(t)
	ticket := buildFourLeafTicket(t, ks)
	ticket.Receipts.MerkleProofs[0].Siblings[0] = crypto.SHA256HexBytes([]byte{'x'})

	verdict := Verify(ticket, ks)
	if verdict.Valid || verdict.Checks.ProofOk {
		t.Errorf("expected proofOk=false after tampering a sibling, got %+v", verdict)
	}
}

// TestVerifyFlippedFlag mirrors spec.md §8 scenario 3.
func TestVerifyFlippedFlag(t *testing.T) {
	ks := fixedKeyStore(t)
	ticket := buildFourLeafTicket(t, ks)
	p := &ticket.Receipts.MerkleProofs[2]
	if p.Flags[0] == "L" {
		p.Flags[0] = "R"
	} else {
		p.Flags[0] = "L"
	}

	verdict := Verify(ticket, ks)
	if verdict.Checks.ProofOk {
		t.Errorf("expected proofOk=false after flipping a flag, got %+v", verdict)
	}
}

// TestVerifyOddLeafAlteration mirrors spec.md §8 scenario 4.
func TestVerifyOddLeafAlteration(t *testing.T) {
	ks := fixedKeyStore(t)
	req := BuildRequest{
		TenantID:         "t1",
		ConversationID:   "c1",
		OutputID:         "o1",
		CreatedAt:        "2024-01-01T00:00:00Z",
		Model:            "m1",
		PolicyPack:       "pp1",
		ShardFunc:        func(any) ([][]byte, error) { return [][]byte{{'a'}, {'b'}, {'c'}}, nil },
		ControlPlaneKeys: ks,
		AgentKeys:        ks,
	}
	ticket, err := BuildTicket(req)
	if err != nil {
		t.Fatalf("BuildTicket: %v", err)
	}
	ticket.Receipts.MerkleProofs[2].Leaf = crypto.SHA256HexBytes([]byte{'z'})

	verdict := Verify(*ticket, ks)
	if verdict.Checks.ProofOk {
		t.Errorf("expected proofOk=false after altering a leaf, got %+v", verdict)
	}
}

// TestVerifyKidMismatch mirrors spec.md §8 scenario 6: a single-key
// keystore must reject a signature whose field carries a kid other than
// that key's own, even though the signature bytes were produced by that
// key.
func TestVerifyKidMismatch(t *testing.T) {
	ks := fixedKeyStore(t)
	ticket := buildFourLeafTicket(t, ks)

	kid, sigB64, ok := crypto.ParseSignatureField(ticket.Receipts.Sybi.Signatures.ControlPlane)
	if !ok {
		t.Fatalf("ParseSignatureField failed on our own output")
	}
	wrongField := "Ed25519:" + kid + "-wrong:" + sigB64
	ticket.Receipts.Sybi.Signatures.ControlPlane = wrongField
	ticket.Receipts.Sybi.Signatures.Agent = wrongField

	verdict := Verify(ticket, ks)
	if verdict.Valid {
		t.Errorf("expected invalid verdict on kid mismatch, got %+v", verdict)
	}
}

func buildFourLeafTicket(t *testing.T, ks *crypto.KeyStore) Ticket {
	t.Helper()
	req := BuildRequest{
		TenantID:         "t1",
		ConversationID:   "c1",
		OutputID:         "o1",
		CreatedAt:        "2024-01-01T00:00:00Z",
		Model:            "m1",
		PolicyPack:       "pp1",
		ShardFunc:        func(any) ([][]byte, error) { return [][]byte{{'a'}, {'b'}, {'c'}, {'d'}}, nil },
		ControlPlaneKeys: ks,
		AgentKeys:        ks,
	}
	ticket, err := BuildTicket(req)
	if err != nil {
		t.Fatalf("BuildTicket: %v", err)
	}
	return *ticket
}

func TestBuildTicketUnsignedWhenNoKeys(t *testing.T) {
	req := BuildRequest{
		TenantID:       "t1",
		ConversationID: "c1",
		OutputID:       "o1",
		CreatedAt:      "2024-01-01T00:00:00Z",
		Model:          "m1",
		PolicyPack:     "pp1",
		ShardFunc:      func(any) ([][]byte, error) { return [][]byte{{'a'}}, nil },
	}
	ticket, err := BuildTicket(req)
	if err != nil {
		t.Fatalf("BuildTicket: %v", err)
	}
	if ticket.Receipts.Sybi.Signatures.ControlPlane != crypto.UnsignedField {
		t.Errorf("ControlPlane = %q, want UNSIGNED", ticket.Receipts.Sybi.Signatures.ControlPlane)
	}
	if ticket.Signatures.Gateway != crypto.UnsignedField {
		t.Errorf("Gateway = %q, want UNSIGNED", ticket.Signatures.Gateway)
	}
}

func TestBuildTicketDisjunctiveSigners(t *testing.T) {
	ctrl, err := crypto.GenerateKeyStore()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	agent, err := crypto.GenerateKeyStore()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req := BuildRequest{
		TenantID:         "t1",
		ConversationID:   "c1",
		OutputID:         "o1",
		CreatedAt:        "2024-01-01T00:00:00Z",
		Model:            "m1",
		PolicyPack:       "pp1",
		ShardFunc:        func(any) ([][]byte, error) { return [][]byte{{'a'}}, nil },
		ControlPlaneKeys: ctrl,
		AgentKeys:        agent,
	}
	ticket, err := BuildTicket(req)
	if err != nil {
		t.Fatalf("BuildTicket: %v", err)
	}
	// A verifier that only knows the control-plane key should still see
	// the ticket as valid, since only one signer needs to verify.
	verdict := Verify(*ticket, ctrl)
	if !verdict.Valid {
		t.Errorf("expected valid verdict with only control-plane key known, got %+v", verdict)
	}
	if verdict.Checks.SigAgentOk {
		t.Errorf("expected sigAgentOk=false (agent signed under an unknown key), got true")
	}
}

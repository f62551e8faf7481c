package merkle

import (
	"testing"

	"github.com/symbi-labs/ticket-core/pkg/crypto"
)

func hexOf(s string) string { return crypto.SHA256Hex(s) }

func TestRootEmpty(t *testing.T) {
	if got := Root(nil); got != "" {
		t.Errorf("Root(nil) = %q, want empty string", got)
	}
	if got := Root([]string{}); got != "" {
		t.Errorf("Root([]) = %q, want empty string", got)
	}
}

func TestRootSingleLeaf(t *testing.T) {
	leaf := hexOf("a")
	if got := Root([]string{leaf}); got != leaf {
		t.Errorf("Root(single) = %q, want %q", got, leaf)
	}
}

func TestRootDeterministic(t *testing.T) {
	leaves := []string{hexOf("a"), hexOf("b"), hexOf("c"), hexOf("d")}
	r1 := Root(leaves)
	r2 := Root(leaves)
	if r1 != r2 {
		t.Fatalf("Root is not deterministic: %q != %q", r1, r2)
	}
	want := combine(combine(leaves[0], leaves[1]), combine(leaves[2], leaves[3]))
	if r1 != want {
		t.Errorf("Root = %q, want %q", r1, want)
	}
}

// TestOddLeafDuplication pins spec.md §8 property 3:
// merkle_root([a,b,c]) = sha256hex(sha256hex(a+b) + sha256hex(c+c))
func TestOddLeafDuplication(t *testing.T) {
	a, b, c := hexOf("a"), hexOf("b"), hexOf("c")
	got := Root([]string{a, b, c})
	want := combine(combine(a, b), combine(c, c))
	if got != want {
		t.Errorf("Root([a,b,c]) = %q, want %q", got, want)
	}
}

func TestBuildProofsEmpty(t *testing.T) {
	if proofs := BuildProofs(nil); proofs != nil {
		t.Errorf("BuildProofs(nil) = %v, want nil", proofs)
	}
}

func TestBuildProofsSingleLeaf(t *testing.T) {
	leaf := hexOf("solo")
	proofs := BuildProofs([]string{leaf})
	if len(proofs) != 1 {
		t.Fatalf("len(proofs) = %d, want 1", len(proofs))
	}
	if len(proofs[0].Siblings) != 0 || len(proofs[0].Flags) != 0 {
		t.Errorf("single-leaf proof should have no siblings/flags, got %+v", proofs[0])
	}
	if !VerifyProof(proofs[0], leaf) {
		t.Errorf("single-leaf proof did not verify against the leaf itself as root")
	}
}

func TestBuildProofsVerifyAllIndices(t *testing.T) {
	leaves := make([]string, 0, 7)
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		leaves = append(leaves, hexOf(s))
	}
	root := Root(leaves)
	proofs := BuildProofs(leaves)
	if len(proofs) != len(leaves) {
		t.Fatalf("len(proofs) = %d, want %d", len(proofs), len(leaves))
	}
	for i, p := range proofs {
		if p.Leaf != leaves[i] {
			t.Errorf("proof[%d].Leaf = %q, want %q", i, p.Leaf, leaves[i])
		}
		if !VerifyProof(p, root) {
			t.Errorf("proof[%d] failed to verify against root", i)
		}
	}
}

func TestVerifyProofTamperedSibling(t *testing.T) {
	leaves := []string{hexOf("a"), hexOf("b"), hexOf("c"), hexOf("d")}
	root := Root(leaves)
	proofs := BuildProofs(leaves)
	p := proofs[0]
	p.Siblings = append([]string(nil), p.Siblings...)
	p.Siblings[0] = hexOf("x")
	if VerifyProof(p, root) {
		t.Error("tampered sibling unexpectedly verified")
	}
}

func TestVerifyProofFlippedFlag(t *testing.T) {
	leaves := []string{hexOf("a"), hexOf("b"), hexOf("c"), hexOf("d")}
	root := Root(leaves)
	proofs := BuildProofs(leaves)
	p := proofs[2]
	p.Flags = append([]string(nil), p.Flags...)
	if p.Flags[0] == "L" {
		p.Flags[0] = "R"
	} else {
		p.Flags[0] = "L"
	}
	if VerifyProof(p, root) {
		t.Error("flipped flag unexpectedly verified")
	}
}

func TestVerifyProofOddLeafAlteration(t *testing.T) {
	leaves := []string{hexOf("a"), hexOf("b"), hexOf("c")}
	root := Root(leaves)
	proofs := BuildProofs(leaves)
	p := proofs[2]
	p.Leaf = hexOf("z")
	if VerifyProof(p, root) {
		t.Error("altered leaf unexpectedly verified")
	}
}

func TestVerifyProofSwappedLeaves(t *testing.T) {
	leaves := []string{hexOf("a"), hexOf("b"), hexOf("c"), hexOf("d")}
	root := Root(leaves)
	swapped := []string{leaves[1], leaves[0], leaves[2], leaves[3]}
	if Root(swapped) == root {
		t.Error("reordering leaves unexpectedly produced the same root")
	}
}

func TestVerifyProofMismatchedLengths(t *testing.T) {
	p := Proof{Leaf: hexOf("a"), Siblings: []string{hexOf("b")}, Flags: []string{}}
	if VerifyProof(p, "anything") {
		t.Error("mismatched siblings/flags length unexpectedly verified")
	}
}

func TestVerifyProofUnknownFlag(t *testing.T) {
	p := Proof{Leaf: hexOf("a"), Siblings: []string{hexOf("b")}, Flags: []string{"X"}}
	if VerifyProof(p, "anything") {
		t.Error("unknown flag unexpectedly verified")
	}
}

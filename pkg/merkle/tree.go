// Package merkle computes Merkle roots and per-leaf inclusion proofs over
// ordered lists of hex-encoded SHA-256 leaf hashes. Construction and proof
// verification are pure functions of the leaf list: the same ordered
// leaves always yield byte-identical roots and proofs, independent of
// process or language.
package merkle

import "github.com/symbi-labs/ticket-core/pkg/crypto"

// combine hashes the string concatenation of two hex digests — NOT their
// raw bytes. Node hashes are sha256hex(left_hex + right_hex).
func combine(left, right string) string {
	return crypto.SHA256Hex(left + right)
}

// Root computes the Merkle root over leaves, an ordered list of 64-char
// hex leaf hashes. An empty list yields the empty string; a single leaf is
// its own root. Odd-length levels duplicate their last element rather
// than promoting it unchanged.
func Root(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	levels := buildLevels(leaves)
	top := levels[len(levels)-1]
	return top[0]
}

// buildLevels returns every level of the tree, bottom (the leaves
// themselves) to top (a single-element root level). Each stored level
// keeps its pre-duplication length, so proof construction can tell a
// genuine sibling from a self-paired duplicate.
func buildLevels(leaves []string) [][]string {
	cur := append([]string(nil), leaves...)
	levels := [][]string{cur}
	for len(cur) > 1 {
		cur = nextLevel(cur)
		levels = append(levels, cur)
	}
	return levels
}

func nextLevel(level []string) []string {
	n := len(level)
	work := level
	if n%2 != 0 {
		work = append(append([]string(nil), level...), level[n-1])
		n++
	}
	next := make([]string, n/2)
	for i := 0; i < n; i += 2 {
		next[i/2] = combine(work[i], work[i+1])
	}
	return next
}

package merkle

// Proof is a per-leaf inclusion proof: the leaf itself, the sibling hash
// at each level on the path to the root, and the side ("L" or "R") the
// accumulator occupied in each combination.
type Proof struct {
	Leaf     string   `json:"leaf"`
	Siblings []string `json:"siblings"`
	Flags    []string `json:"flags"`
}

// BuildProofs returns one inclusion proof per leaf, in leaf order. A
// single-leaf tree yields one proof with empty siblings/flags; an empty
// leaf list yields no proofs.
func BuildProofs(leaves []string) []Proof {
	if len(leaves) == 0 {
		return nil
	}
	if len(leaves) == 1 {
		return []Proof{{Leaf: leaves[0], Siblings: []string{}, Flags: []string{}}}
	}

	levels := buildLevels(leaves)
	proofs := make([]Proof, len(leaves))
	for i, leaf := range leaves {
		idx := i
		siblings := make([]string, 0, len(levels)-1)
		flags := make([]string, 0, len(levels)-1)
		for level := 0; level < len(levels)-1; level++ {
			cur := levels[level]
			n := len(cur)
			var sibIdx int
			var flag string
			if idx%2 == 0 {
				sibIdx = idx + 1
				if sibIdx >= n {
					sibIdx = idx // last element of an odd level, duplicated against itself
				}
				flag = "L"
			} else {
				sibIdx = idx - 1
				flag = "R"
			}
			siblings = append(siblings, cur[sibIdx])
			flags = append(flags, flag)
			idx /= 2
		}
		proofs[i] = Proof{Leaf: leaf, Siblings: siblings, Flags: flags}
	}
	return proofs
}

// VerifyProof recomputes the accumulator from proof.Leaf up through each
// sibling/flag pair and compares it to root. A flag of "L" means the
// accumulator was on the left of the combination
// (sha256hex(acc + sibling)); "R" means it was on the right
// (sha256hex(sibling + acc)). Any other flag, or a length mismatch
// between siblings and flags, fails closed.
func VerifyProof(p Proof, root string) bool {
	if len(p.Siblings) != len(p.Flags) {
		return false
	}
	acc := p.Leaf
	for i, sib := range p.Siblings {
		switch p.Flags[i] {
		case "L":
			acc = combine(acc, sib)
		case "R":
			acc = combine(sib, acc)
		default:
			return false
		}
	}
	return acc == root
}

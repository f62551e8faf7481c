package receipts

import "github.com/symbi-labs/ticket-core/pkg/merkle"

// TicketVersion is the fixed version stamped on every assembled ticket.
const TicketVersion = "1.0"

// Scope carries the retention and usage grant a ticket was issued under
// (spec.md §3). A policy pack may supply defaults (pkg/policypack); the
// caller's explicit scope always wins when provided.
type Scope struct {
	RetentionDays int    `json:"max_retention_days" yaml:"max_retention_days"`
	AllowRaw      bool   `json:"allow_raw" yaml:"allow_raw"`
	AllowTraining bool   `json:"allow_training" yaml:"allow_training"`
	Purpose       string `json:"purpose" yaml:"purpose"`
}

// IsZero reports whether s is the zero-value Scope, i.e. the caller left
// every field at its default. It cannot tell an omitted scope from an
// explicit all-zero one; POST /assess makes that distinction with a
// *Scope on its wire type instead.
func (s Scope) IsZero() bool {
	return s == Scope{}
}

// TransparencyEntry is one entry in a ticket's transparency_log.
type TransparencyEntry struct {
	Who   string `json:"who"`
	What  string `json:"what"`
	When  string `json:"when"`
	CBTID string `json:"cbt_id"`
}

// OuterSignatures are the ticket envelope's gateway/audit signatures.
// They sign tenant-scoped strings, not the receipt subject, and are
// advisory: /verify checks the inner receipt signatures, never these
// (spec.md §4.4).
type OuterSignatures struct {
	Gateway string `json:"gateway"`
	Audit   string `json:"audit"`
}

// Receipts is the `ticket.receipts` sub-object: the inner receipt plus
// its derived shard manifests and Merkle commitment.
type Receipts struct {
	Sybi            Receipt        `json:"sybi"`
	ShardManifests  []string       `json:"shard_manifests"`
	MerkleRoot      string         `json:"merkle_root"`
	MerkleProofs    []merkle.Proof `json:"merkle_proofs"`
}

// Ticket is the outer envelope wrapping a receipt with its Merkle proofs,
// scope, transparency log, and outer signatures (spec.md §3, §6).
type Ticket struct {
	TicketVersion   string              `json:"ticket_version"`
	Summary         string              `json:"summary"`
	Receipts        Receipts            `json:"receipts"`
	Scope           Scope               `json:"scope"`
	TransparencyLog []TransparencyEntry `json:"transparency_log"`
	Signatures      OuterSignatures     `json:"signatures"`
}

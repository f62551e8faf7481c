package receipts

import (
	"encoding/json"
	"fmt"

	"github.com/symbi-labs/ticket-core/pkg/crypto"
	"github.com/symbi-labs/ticket-core/pkg/merkle"
)

// Shards maps an opaque validation payload to an ordered list of byte
// chunks to be hashed into Merkle leaves (spec.md §9 design note: "shard
// extraction is a single injective mapping from that value to an ordered
// list of byte chunks"). The default, DefaultShards, treats the whole
// payload as a single shard.
type Shards func(data any) ([][]byte, error)

// DefaultShards serializes data as JSON and returns it as the sole shard.
func DefaultShards(data any) ([][]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("receipts: marshal shard payload: %w", err)
	}
	return [][]byte{b}, nil
}

// SubReceipts bundles the five opaque sub-receipts a Receipt carries.
type SubReceipts struct {
	Reality   RawSubReceipt
	Trust     RawSubReceipt
	Ethics    RawSubReceipt
	Resonance RawSubReceipt
	Parity    RawSubReceipt
}

// BuildRequest is the input to BuildTicket.
type BuildRequest struct {
	TenantID       string
	ConversationID string
	OutputID       string
	CreatedAt      string // RFC3339 UTC
	Model          string
	PolicyPack     string
	Data           any // opaque validation data; see Shards
	Sub            SubReceipts
	Scope          Scope
	TransparencyLog []TransparencyEntry
	Summary        string

	// ControlPlaneKeys and AgentKeys sign the receipt subject
	// independently, per spec.md §4.3's disjunctive dual-signer design.
	// A deployment with one active signer passes the same KeyStore twice.
	ControlPlaneKeys *crypto.KeyStore
	AgentKeys        *crypto.KeyStore

	// OuterKeys signs the outer gateway/audit fields (spec.md §4.4); may
	// be nil, in which case both outer signatures are "UNSIGNED".
	OuterKeys *crypto.KeyStore

	// ShardFunc overrides shard derivation; nil uses DefaultShards.
	ShardFunc Shards
}

// BuildTicket implements C3 (receipt builder) and C4 (ticket assembler):
// it derives shard hashes from the opaque payload, builds the Merkle tree
// over them, assembles and dual-signs the receipt, and wraps it in a
// Ticket with per-leaf proofs, scope, transparency log, and advisory
// outer signatures.
func BuildTicket(req BuildRequest) (*Ticket, error) {
	shardFn := req.ShardFunc
	if shardFn == nil {
		shardFn = DefaultShards
	}
	chunks, err := shardFn(req.Data)
	if err != nil {
		return nil, err
	}

	shardHashes := make([]string, len(chunks))
	manifests := make([]string, len(chunks))
	for i, chunk := range chunks {
		h := crypto.SHA256HexBytes(chunk)
		shardHashes[i] = h
		manifests[i] = "manifest:" + h
	}

	root := merkle.Root(shardHashes)
	proofs := merkle.BuildProofs(shardHashes)

	receipt := Receipt{
		ReceiptVersion:   ReceiptVersion,
		TenantID:         req.TenantID,
		ConversationID:   req.ConversationID,
		OutputID:         req.OutputID,
		CreatedAt:        req.CreatedAt,
		Model:            req.Model,
		PolicyPack:       req.PolicyPack,
		ShardHashes:      shardHashes,
		RealityReceipt:   req.Sub.Reality,
		TrustReceipt:     req.Sub.Trust,
		EthicsReceipt:    req.Sub.Ethics,
		ResonanceReceipt: req.Sub.Resonance,
		ParityReceipt:    req.Sub.Parity,
	}

	subject := receipt.Subject()
	if req.ControlPlaneKeys != nil {
		receipt.Signatures.ControlPlane = req.ControlPlaneKeys.SignField(subject)
	} else {
		receipt.Signatures.ControlPlane = crypto.UnsignedField
	}
	if req.AgentKeys != nil {
		receipt.Signatures.Agent = req.AgentKeys.SignField(subject)
	} else {
		receipt.Signatures.Agent = crypto.UnsignedField
	}

	var outer OuterSignatures
	outerSubject := []byte(req.TenantID + "|" + req.OutputID)
	if req.OuterKeys != nil {
		outer.Gateway = req.OuterKeys.SignField(outerSubject)
		outer.Audit = req.OuterKeys.SignField(outerSubject)
	} else {
		outer.Gateway = crypto.UnsignedField
		outer.Audit = crypto.UnsignedField
	}

	ticket := &Ticket{
		TicketVersion: TicketVersion,
		Summary:       req.Summary,
		Receipts: Receipts{
			Sybi:           receipt,
			ShardManifests: manifests,
			MerkleRoot:     root,
			MerkleProofs:   proofs,
		},
		Scope:           req.Scope,
		TransparencyLog: req.TransparencyLog,
		Signatures:      outer,
	}
	return ticket, nil
}

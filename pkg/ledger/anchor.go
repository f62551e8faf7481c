package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/symbi-labs/ticket-core/pkg/anchorsink"
	"github.com/symbi-labs/ticket-core/pkg/merkle"
)

const ledgerExtAnchorPrefix = "ledger_ext_anchor:ot:"

// Anchor is a Merkle root computed over every ledger entry hash present
// at anchoring time (spec.md §3, §4.5).
type Anchor struct {
	ID   string `json:"id"`
	TS   string `json:"ts"`
	Root string `json:"root"`
}

// ExternalAnchor is the payload recorded under
// "ledger_ext_anchor:ot:<uuid>" for an operator to forward to an
// off-system notary. The core never transports it itself.
type ExternalAnchor struct {
	Root string `json:"root"`
	TS   string `json:"ts"`
}

// InternalAnchor collects the hash field of every ledger entry in key
// order, computes a Merkle root over them, and persists the anchor under
// "ledger_anchor:<ts>:<id>".
func (l *Ledger) InternalAnchor(ctx context.Context) (Anchor, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return Anchor{}, err
	}
	hashes := make([]string, len(entries))
	for i, e := range entries {
		hashes[i] = e.Hash
	}
	root := merkle.Root(hashes)

	a := Anchor{ID: l.newID(), TS: l.clock().UTC().Format(time.RFC3339), Root: root}
	b, err := json.Marshal(a)
	if err != nil {
		return Anchor{}, fmt.Errorf("ledger: marshal anchor: %w", err)
	}
	key := fmt.Sprintf("%s%s:%s", ledgerAnchorPrefix, a.TS, a.ID)
	if err := l.store.Put(ctx, key, b); err != nil {
		return Anchor{}, fmt.Errorf("ledger: persist anchor: %w", err)
	}
	return a, nil
}

// Anchors returns every persisted internal anchor, in chronological
// order.
func (l *Ledger) Anchors(ctx context.Context) ([]Anchor, error) {
	rows, err := l.store.ScanPrefix(ctx, ledgerAnchorPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list anchors: %w", err)
	}
	out := make([]Anchor, 0, len(rows))
	for _, kv := range rows {
		var a Anchor
		if err := json.Unmarshal(kv.Value, &a); err != nil {
			return nil, fmt.Errorf("ledger: decode anchor %s: %w", kv.Key, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// ExternalAnchor computes the same internal anchor root, persists the
// external-anchor record under "ledger_ext_anchor:ot:<uuid>", and
// best-effort mirrors it to sink. The KV write is the authoritative act;
// a sink failure is logged by the caller (pkg/ticketapi) and does not
// fail the request (spec.md §4.11).
func (l *Ledger) ExternalAnchor(ctx context.Context, sink anchorsink.Sink) (id string, ea ExternalAnchor, sinkErr error) {
	entries, err := l.List(ctx)
	if err != nil {
		return "", ExternalAnchor{}, err
	}
	hashes := make([]string, len(entries))
	for i, e := range entries {
		hashes[i] = e.Hash
	}
	root := merkle.Root(hashes)

	id = l.newID()
	ea = ExternalAnchor{Root: root, TS: l.clock().UTC().Format(time.RFC3339)}
	b, err := json.Marshal(ea)
	if err != nil {
		return "", ExternalAnchor{}, fmt.Errorf("ledger: marshal external anchor: %w", err)
	}
	key := ledgerExtAnchorPrefix + id
	if err := l.store.Put(ctx, key, b); err != nil {
		return "", ExternalAnchor{}, fmt.Errorf("ledger: persist external anchor: %w", err)
	}

	// RFC 8785 canonicalization before handing the payload to the sink:
	// an off-system notary may run a different JSON encoder, and the
	// notary relationship depends on both sides hashing identical bytes.
	canonical, cErr := jcs.Transform(b)
	if cErr != nil {
		canonical = b
	}

	if sink != nil {
		if _, sErr := sink.Put(ctx, id, canonical); sErr != nil {
			sinkErr = sErr
		}
	}
	return id, ea, sinkErr
}

// ExternalAnchors returns every persisted external-anchor record, keyed
// by id, in no particular order (the key layout carries no timestamp
// prefix, unlike internal anchors and ledger entries).
func (l *Ledger) ExternalAnchors(ctx context.Context) (map[string]ExternalAnchor, error) {
	rows, err := l.store.ScanPrefix(ctx, ledgerExtAnchorPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list external anchors: %w", err)
	}
	out := make(map[string]ExternalAnchor, len(rows))
	for _, kv := range rows {
		var ea ExternalAnchor
		if err := json.Unmarshal(kv.Value, &ea); err != nil {
			return nil, fmt.Errorf("ledger: decode external anchor %s: %w", kv.Key, err)
		}
		id := kv.Key[len(ledgerExtAnchorPrefix):]
		out[id] = ea
	}
	return out, nil
}

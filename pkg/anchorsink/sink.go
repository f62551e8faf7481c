// Package anchorsink forwards external-anchor payloads to an
// off-system mirror an operator can hand to a notary (spec.md §4.5,
// SPEC_FULL.md §4.11). The core itself never transports to the notary —
// a sink is a convenience mirror, not part of the verification contract.
package anchorsink

import "context"

// Sink mirrors an external-anchor payload somewhere outside the KV store.
// Put returns an identifier meaningful to that destination (e.g. an S3
// object key); callers treat sink failures as non-fatal, since the KV
// write under "ledger_ext_anchor:ot:<uuid>" is the authoritative record.
type Sink interface {
	Put(ctx context.Context, id string, payload []byte) (string, error)
}

// NoopSink is the default sink: it returns the external id unchanged and
// transports nowhere, matching spec.md §4.5's "the core does not
// transport to the notary — it only records intent."
type NoopSink struct{}

func (NoopSink) Put(_ context.Context, id string, _ []byte) (string, error) {
	return id, nil
}

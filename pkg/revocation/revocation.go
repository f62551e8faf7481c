// Package revocation implements the output-id keyed revocation set
// consulted during verification (spec.md §4.6). Revocation is
// authoritative: a cryptographically valid receipt for a revoked output
// is invalid, and records are never deleted once created.
package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/symbi-labs/ticket-core/pkg/kvstore"
)

const keyPrefix = "revocation:"

// Record is one revocation entry, keyed by "revocation:<output_id>".
type Record struct {
	OutputID  string `json:"output_id"`
	RevokedAt string `json:"revoked_at"` // RFC3339
	Reason    string `json:"reason"`
}

// Store is the revocation set, backed by a kvstore.Store.
type Store struct {
	store kvstore.Store
	clock func() time.Time
}

// New constructs a Store over kv, using the real wall clock.
func New(kv kvstore.Store) *Store {
	return &Store{store: kv, clock: time.Now}
}

// WithClock overrides the clock, for deterministic tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// Revoke records outputID as revoked. Revocation lifecycle is
// create-only: revoking an already-revoked output overwrites the record
// (updating reason/timestamp) but this is not a delete — the output
// remains revoked either way.
func (s *Store) Revoke(ctx context.Context, outputID, reason string) (Record, error) {
	r := Record{
		OutputID:  outputID,
		RevokedAt: s.clock().UTC().Format(time.RFC3339),
		Reason:    reason,
	}
	b, err := json.Marshal(r)
	if err != nil {
		return Record{}, fmt.Errorf("revocation: marshal record: %w", err)
	}
	if err := s.store.Put(ctx, keyPrefix+outputID, b); err != nil {
		return Record{}, fmt.Errorf("revocation: put %s: %w", outputID, err)
	}
	return r, nil
}

// Lookup reports whether outputID has been revoked, and the record if so.
func (s *Store) Lookup(ctx context.Context, outputID string) (Record, bool, error) {
	b, ok, err := s.store.Get(ctx, keyPrefix+outputID)
	if err != nil {
		return Record{}, false, fmt.Errorf("revocation: get %s: %w", outputID, err)
	}
	if !ok {
		return Record{}, false, nil
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, false, fmt.Errorf("revocation: decode %s: %w", outputID, err)
	}
	return r, true, nil
}

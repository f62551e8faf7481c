// Package ledger implements the transparency ledger and anchoring of
// spec.md §4.5: an append-only, KV-backed log of receipt hashes, plus
// periodic internal Merkle anchors over that log and an external-anchor
// stub an operator can forward to an off-system notary.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/symbi-labs/ticket-core/pkg/kvstore"
)

const (
	ledgerPrefix       = "ledger:"
	ledgerAnchorPrefix = "ledger_anchor:"
)

// Entry is one ledger row (spec.md §3). Storage key is
// "ledger:<ts>:<id>" so a prefix scan returns entries in lexicographic —
// and therefore chronological — order.
type Entry struct {
	ID   string         `json:"id"`
	TS   string         `json:"ts"` // RFC3339
	Type string         `json:"type"`
	Hash string         `json:"hash"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Ledger is the append-only log and anchor store, backed by a
// kvstore.Store so the same logic runs over memory, SQLite, Postgres, or
// Redis (SPEC_FULL.md §4.9).
type Ledger struct {
	store kvstore.Store
	clock func() time.Time
	newID func() string
}

// New constructs a Ledger over store, using the real wall clock and
// random UUIDs.
func New(store kvstore.Store) *Ledger {
	return &Ledger{
		store: store,
		clock: time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// WithClock overrides the clock, for deterministic tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// WithIDFunc overrides id generation, for deterministic tests.
func (l *Ledger) WithIDFunc(f func() string) *Ledger {
	l.newID = f
	return l
}

// Append assigns an id and timestamp to a new entry, writes it under
// "ledger:<ts>:<id>", and returns the stored entry. entryType defaults to
// "receipt" when empty, per spec.md §3.
func (l *Ledger) Append(ctx context.Context, entryType, hash string, meta map[string]any) (Entry, error) {
	if entryType == "" {
		entryType = "receipt"
	}
	e := Entry{
		ID:   l.newID(),
		TS:   l.clock().UTC().Format(time.RFC3339),
		Type: entryType,
		Hash: hash,
		Meta: meta,
	}
	b, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: marshal entry: %w", err)
	}
	key := fmt.Sprintf("%s%s:%s", ledgerPrefix, e.TS, e.ID)
	if err := l.store.Put(ctx, key, b); err != nil {
		return Entry{}, fmt.Errorf("ledger: append: %w", err)
	}
	return e, nil
}

// List returns every ledger entry present, in chronological order (the
// key layout's lexicographic order). A prefix scan may miss a
// concurrently-in-flight write; that is acceptable, since anchoring is
// idempotent over whatever prefix it observes (spec.md §5).
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.store.ScanPrefix(ctx, ledgerPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, kv := range rows {
		var e Entry
		if err := json.Unmarshal(kv.Value, &e); err != nil {
			return nil, fmt.Errorf("ledger: decode entry %s: %w", kv.Key, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Purge deletes every ledger entry and anchor older than cutoff, driving
// /jobs/purge's RETENTION_DAYS policy.
func (l *Ledger) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	for _, prefix := range []string{ledgerPrefix, ledgerAnchorPrefix} {
		rows, err := l.store.ScanPrefix(ctx, prefix)
		if err != nil {
			return deleted, fmt.Errorf("ledger: purge scan %s: %w", prefix, err)
		}
		for _, kv := range rows {
			ts, ok := timestampFromKey(kv.Key, prefix)
			if !ok || !ts.Before(cutoff) {
				continue
			}
			if err := l.store.Delete(ctx, kv.Key); err != nil {
				return deleted, fmt.Errorf("ledger: purge delete %s: %w", kv.Key, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

func timestampFromKey(key, prefix string) (time.Time, bool) {
	rest := key[len(prefix):]
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == ':' {
			ts, err := time.Parse(time.RFC3339, rest[:i])
			if err != nil {
				return time.Time{}, false
			}
			return ts, true
		}
	}
	return time.Time{}, false
}

package ticketapi

import (
	"encoding/json"
	"net/http"

	"github.com/symbi-labs/ticket-core/pkg/anchorsink"
)

// handleLedgerList implements GET /ledger.
func (s *Server) handleLedgerList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	entries, err := s.Ledger.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type ledgerAppendRequest struct {
	Type string         `json:"type"`
	Hash string         `json:"hash"`
	Meta map[string]any `json:"meta,omitempty"`
}

// handleLedgerAppend implements POST /ledger/append.
func (s *Server) handleLedgerAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	var req ledgerAppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "malformed JSON body: "+err.Error())
		return
	}
	if req.Hash == "" {
		writeBadRequest(w, r, "hash is required")
		return
	}
	entry, err := s.Ledger.Append(r.Context(), req.Type, req.Hash, req.Meta)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	s.requestLogger(r).Info("ledger append", "id", entry.ID, "type", entry.Type)
	writeJSON(w, http.StatusOK, entry)
}

// handleLedgerAnchor implements POST /ledger/anchor: an internal Merkle
// anchor over every ledger entry hash observed so far.
func (s *Server) handleLedgerAnchor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	anchor, err := s.Ledger.InternalAnchor(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	s.requestLogger(r).Info("ledger anchor", "anchor_id", anchor.ID, "root", anchor.Root)
	writeJSON(w, http.StatusOK, anchor)
}

// handleLedgerAnchorExternal implements POST /ledger/anchor/external: the
// KV write is authoritative; AnchorSink delivery is best-effort and a sink
// failure never fails the request (spec.md §4.5, §4.11).
func (s *Server) handleLedgerAnchorExternal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	sink := s.AnchorSink
	if sink == nil {
		sink = anchorsink.NoopSink{}
	}
	id, ea, sinkErr := s.Ledger.ExternalAnchor(r.Context(), sink)
	logger := s.requestLogger(r)
	if sinkErr != nil {
		logger.Warn("external anchor sink delivery failed", "anchor_id", id, "error", sinkErr)
	}
	logger.Info("external anchor", "anchor_id", id, "root", ea.Root)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "anchor": ea})
}

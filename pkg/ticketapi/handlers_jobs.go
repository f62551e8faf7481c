package ticketapi

import (
	"net/http"
	"time"

	"github.com/symbi-labs/ticket-core/pkg/anchorsink"
)

// handleJobsPurge implements POST /jobs/purge: deletes ledger entries and
// anchors older than RetentionDays (spec.md §6).
func (s *Server) handleJobsPurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)
	deleted, err := s.Ledger.Purge(r.Context(), cutoff)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	s.requestLogger(r).Info("purge job", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "cutoff": cutoff.Format(time.RFC3339)})
}

// handleJobsAnchor implements POST /jobs/anchor: the scheduled internal +
// external anchor run of spec.md §4.5.
func (s *Server) handleJobsAnchor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	internal, err := s.Ledger.InternalAnchor(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	sink := s.AnchorSink
	if sink == nil {
		sink = anchorsink.NoopSink{}
	}
	extID, ext, sinkErr := s.Ledger.ExternalAnchor(r.Context(), sink)
	logger := s.requestLogger(r)
	if sinkErr != nil {
		logger.Warn("scheduled anchor: external sink delivery failed", "anchor_id", extID, "error", sinkErr)
	}
	logger.Info("scheduled anchor run", "internal_root", internal.Root, "external_id", extID)
	writeJSON(w, http.StatusOK, map[string]any{
		"internal": internal,
		"external": map[string]any{"id": extID, "anchor": ext},
	})
}

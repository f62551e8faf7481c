package ticketapi

import (
	"encoding/json"
	"net/http"
)

type revokeRequest struct {
	OutputID string `json:"output_id"`
	Reason   string `json:"reason"`
}

// handleRevoke implements POST /revoke (spec.md §4.6).
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "malformed JSON body: "+err.Error())
		return
	}
	if req.OutputID == "" {
		writeBadRequest(w, r, "output_id is required")
		return
	}
	rec, err := s.Revocation.Revoke(r.Context(), req.OutputID, req.Reason)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	s.requestLogger(r).Info("revoke", "output_id", rec.OutputID, "reason", rec.Reason)
	writeJSON(w, http.StatusOK, rec)
}

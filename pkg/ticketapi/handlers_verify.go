package ticketapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/symbi-labs/ticket-core/pkg/receipts"
)

// handleVerify implements the /verify algorithm of spec.md §4.7: schema
// validation, revocation lookup, then receipts.Verify's Merkle/proof/
// signature checks, in exactly that order, with the first failing step
// short-circuiting the rest.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	start := time.Now()
	logger := s.requestLogger(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, r, "could not read request body")
		return
	}

	if _, err := validateTicketJSON(body); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	var ticket receipts.Ticket
	if err := json.Unmarshal(body, &ticket); err != nil {
		writeBadRequest(w, r, "malformed ticket JSON: "+err.Error())
		return
	}

	outputID := ticket.Receipts.Sybi.OutputID
	if outputID == "" {
		writeBadRequest(w, r, "receipts.sybi.output_id is required")
		return
	}

	s.Metrics.ReceiptVerifications.Inc()

	if rec, revoked, err := s.Revocation.Lookup(r.Context(), outputID); err != nil {
		s.Metrics.ReceiptVerificationFailures.Inc()
		writeInternal(w, r, err)
		return
	} else if revoked {
		verdict := receipts.Verdict{Valid: false, Error: "Revoked output"}
		logger.Info("verify", "output_id", outputID, "valid", false, "reason", "revoked", "revoked_at", rec.RevokedAt)
		s.Metrics.ObserveVerifyLatency(msSince(start))
		writeJSON(w, http.StatusOK, verdict)
		return
	}

	verdict := receipts.Verify(ticket, s.Keys)
	s.Metrics.ObserveVerifyLatency(msSince(start))

	logger.Info("verify", "output_id", outputID, "valid", verdict.Valid,
		"merkleOk", verdict.Checks.MerkleOk, "proofOk", verdict.Checks.ProofOk,
		"sigCtrlOk", verdict.Checks.SigCtrlOk, "sigAgentOk", verdict.Checks.SigAgentOk)

	writeJSON(w, http.StatusOK, verdict)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

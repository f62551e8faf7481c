package ticketapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/symbi-labs/ticket-core/pkg/receipts"
)

const assessmentKeyPrefix = "assessment:"

// assessmentRecord is persisted under "assessment:<uuid>" (spec.md §6's
// key layout) at the start and completion of a ticket build, so an
// assessment's lifecycle survives a crashed or slow issuance.
type assessmentRecord struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	OutputID  string `json:"output_id"`
	Status    string `json:"status"` // "started", "completed", or "failed"
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// assessRequest is the wire shape of POST /assess. Scope is a pointer so
// an omitted scope is distinguishable from an explicit zero-value one:
// omitted defers to the policy pack named by PolicyPack (pkg/policypack),
// per SPEC_FULL.md §4.10 and the caller-scope-always-wins rule on
// receipts.Scope.
type assessRequest struct {
	ConversationID string          `json:"conversation_id"`
	OutputID       string          `json:"output_id"`
	CreatedAt      string          `json:"created_at"`
	Model          string          `json:"model"`
	PolicyPack     string          `json:"policy_pack"`
	Data           any             `json:"data"`
	Scope          *receipts.Scope `json:"scope,omitempty"`
	Summary        string          `json:"summary,omitempty"`
}

// handleAssess implements POST /assess: the issuance path spec.md §2
// describes ("caller submits opaque data → ... → C4 emits a ticket"),
// wired to the policy pack evaluator (C10) for default scope resolution
// and to the assessment table (C9) and assessments_started/completed
// counters (C12) for observability over in-flight and finished builds.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeInternal(w, r, fmt.Errorf("ticketapi: missing principal after auth middleware"))
		return
	}

	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "malformed JSON body: "+err.Error())
		return
	}
	if req.OutputID == "" {
		writeBadRequest(w, r, "output_id is required")
		return
	}
	if req.CreatedAt == "" {
		req.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	logger := s.requestLogger(r)
	id := uuid.New().String()
	started := assessmentRecord{
		ID:        id,
		TenantID:  p.TenantID,
		OutputID:  req.OutputID,
		Status:    "started",
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.Metrics.AssessmentsStarted.Inc()
	if err := s.putAssessment(r, started); err != nil {
		writeInternal(w, r, err)
		return
	}

	scope := receipts.Scope{}
	if req.Scope != nil {
		scope = *req.Scope
	} else if s.Packs != nil {
		if resolved, ok := s.Packs.Evaluate(p.TenantID, req.Model, req.PolicyPack); ok {
			scope = resolved
		}
	}

	ticket, err := receipts.BuildTicket(receipts.BuildRequest{
		TenantID:         p.TenantID,
		ConversationID:   req.ConversationID,
		OutputID:         req.OutputID,
		CreatedAt:        req.CreatedAt,
		Model:            req.Model,
		PolicyPack:       req.PolicyPack,
		Data:             req.Data,
		Scope:            scope,
		Summary:          req.Summary,
		ControlPlaneKeys: s.Keys,
		AgentKeys:        s.Keys,
	})
	if err != nil {
		failed := started
		failed.Status = "failed"
		failed.EndedAt = time.Now().UTC().Format(time.RFC3339)
		failed.Error = err.Error()
		_ = s.putAssessment(r, failed)
		writeInternal(w, r, err)
		return
	}

	completed := started
	completed.Status = "completed"
	completed.EndedAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.putAssessment(r, completed); err != nil {
		writeInternal(w, r, err)
		return
	}
	s.Metrics.AssessmentsCompleted.Inc()

	logger.Info("assess", "assessment_id", id, "output_id", req.OutputID, "policy_pack", req.PolicyPack)
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) putAssessment(r *http.Request, rec assessmentRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ticketapi: marshal assessment record: %w", err)
	}
	if err := s.Store.Put(r.Context(), assessmentKeyPrefix+rec.ID, b); err != nil {
		return fmt.Errorf("ticketapi: persist assessment record: %w", err)
	}
	return nil
}

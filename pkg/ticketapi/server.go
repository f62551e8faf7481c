// Package ticketapi implements the HTTP verification service of
// spec.md §4.7 (SPEC_FULL.md component C7): ticket verification,
// revocation, ledger, and anchor job endpoints over a shared
// tenant-authenticated, rate-limited, request-logged HTTP surface.
package ticketapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/symbi-labs/ticket-core/pkg/anchorsink"
	"github.com/symbi-labs/ticket-core/pkg/crypto"
	"github.com/symbi-labs/ticket-core/pkg/kvstore"
	"github.com/symbi-labs/ticket-core/pkg/ledger"
	"github.com/symbi-labs/ticket-core/pkg/metrics"
	"github.com/symbi-labs/ticket-core/pkg/policypack"
	"github.com/symbi-labs/ticket-core/pkg/revocation"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Server bundles the dependencies every handler needs. Construct with
// New; all fields are capability values, not process globals, so tests
// can build isolated instances (spec.md §9).
type Server struct {
	Keys       *crypto.KeyStore
	Store      kvstore.Store
	Ledger     *ledger.Ledger
	Revocation *revocation.Store
	Packs      *policypack.Table
	AnchorSink anchorsink.Sink
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	RetentionDays int

	tenantLimiter *tenantLimiter
	ipLimiter     *ipRateLimiter

	mux *http.ServeMux
}

// Config configures rate-limit parameters at construction time
// (spec.md §6: RATE_LIMIT_CAPACITY, RATE_LIMIT_RPS).
type Config struct {
	RateLimitCapacity float64
	RateLimitRPS      float64
	RetentionDays     int
}

// New builds a Server and registers all routes. store backs the
// assessment table (C9) directly, alongside led/rev which wrap the same
// kind of store for the ledger and revocation tables.
func New(keys *crypto.KeyStore, store kvstore.Store, led *ledger.Ledger, rev *revocation.Store, packs *policypack.Table, sink anchorsink.Sink, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(0)
	}
	capacity := cfg.RateLimitCapacity
	if capacity <= 0 {
		capacity = 30
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 90
	}

	s := &Server{
		Keys:          keys,
		Store:         store,
		Ledger:        led,
		Revocation:    rev,
		Packs:         packs,
		AnchorSink:    sink,
		Metrics:       m,
		Logger:        logger,
		RetentionDays: retention,
		tenantLimiter: newTenantLimiter(capacity, rps),
		ipLimiter:     newIPRateLimiter(5, 10),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.Handle("/healthz", requestIDMiddleware(ipRateLimitMiddleware(s.ipLimiter, http.HandlerFunc(s.handleHealthz))))
	mux.Handle("/readyz", requestIDMiddleware(ipRateLimitMiddleware(s.ipLimiter, http.HandlerFunc(s.handleReadyz))))
	mux.Handle("/metrics", requestIDMiddleware(ipRateLimitMiddleware(s.ipLimiter, http.HandlerFunc(s.handleMetricsProm))))
	mux.Handle("/metrics.json", requestIDMiddleware(ipRateLimitMiddleware(s.ipLimiter, http.HandlerFunc(s.handleMetricsJSON))))

	mux.Handle("/assess", s.protect([]string{"admin", "auditor", "analyst"}, http.HandlerFunc(s.handleAssess)))
	mux.Handle("/verify", s.protect([]string{"admin", "auditor", "analyst", "read-only"}, http.HandlerFunc(s.handleVerify)))
	mux.Handle("/revoke", s.protect([]string{"admin", "auditor"}, http.HandlerFunc(s.handleRevoke)))
	mux.Handle("/ledger", s.protect([]string{"admin", "auditor"}, http.HandlerFunc(s.handleLedgerList)))
	mux.Handle("/ledger/append", s.protect([]string{"admin", "auditor"}, http.HandlerFunc(s.handleLedgerAppend)))
	mux.Handle("/ledger/anchor", s.protect([]string{"admin", "auditor"}, http.HandlerFunc(s.handleLedgerAnchor)))
	mux.Handle("/ledger/anchor/external", s.protect([]string{"admin", "auditor"}, http.HandlerFunc(s.handleLedgerAnchorExternal)))
	mux.Handle("/jobs/purge", s.protect([]string{"admin"}, http.HandlerFunc(s.handleJobsPurge)))
	mux.Handle("/jobs/anchor", s.protect([]string{"admin", "auditor"}, http.HandlerFunc(s.handleJobsAnchor)))

	s.mux = mux
}

// protect wraps a handler with the shared request-id, IP rate limit,
// tenant/role auth, and per-tenant token-bucket chain every non-public
// endpoint requires (spec.md §4.7).
func (s *Server) protect(roles []string, next http.Handler) http.Handler {
	h := rateLimitMiddleware(s.tenantLimiter, next)
	h = tenantAuthMiddleware(roles, h)
	h = ipRateLimitMiddleware(s.ipLimiter, h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.Ledger.List(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMetricsProm(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Metrics.Snapshot())
}

// requestLogger builds a per-request logger carrying request_id, tenant,
// role, and trace_id (from an incoming traceparent header, if present).
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	requestID := requestIDFromContext(r.Context())
	tenantID, role := "", ""
	if p, ok := principalFromContext(r.Context()); ok {
		tenantID, role = p.TenantID, p.Role
	}
	return metrics.RequestLogger(s.Logger, requestID, traceIDFromHeader(r), tenantID, role)
}

func traceIDFromHeader(r *http.Request) string {
	carrier := propagation.HeaderCarrier(r.Header)
	ctx := metrics.Propagator.Extract(r.Context(), carrier)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

package metrics

import (
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/propagation"
)

// NewLogger constructs the service's structured JSON logger, matching the
// teacher's log/slog JSON-handler convention.
func NewLogger(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// RequestLogger returns a logger carrying request_id, tenant_id, and role,
// plus trace_id when a W3C traceparent header was present and parsed by
// propagation.TraceContext (SPEC_FULL.md §4.12).
func RequestLogger(base *slog.Logger, requestID, traceID, tenantID, role string) *slog.Logger {
	attrs := []any{"request_id", requestID}
	if traceID != "" {
		attrs = append(attrs, "trace_id", traceID)
	}
	if tenantID != "" {
		attrs = append(attrs, "tenant_id", tenantID)
	}
	if role != "" {
		attrs = append(attrs, "role", role)
	}
	return base.With(attrs...)
}

// Propagator is the shared W3C trace-context propagator used to extract a
// trace id from an inbound traceparent header.
var Propagator = propagation.TraceContext{}

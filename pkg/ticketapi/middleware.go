package ticketapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}
type principalKey struct{}

// principal is the tenant/role pair attached to a request by
// tenantAuthMiddleware, for downstream handlers and logging.
type principal struct {
	TenantID string
	Role     string
}

// requestIDMiddleware injects a unique X-Request-ID into every request
// context and response header, reusing a client-supplied value if present.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

var allowedRoles = map[string]bool{
	"admin":     true,
	"auditor":   true,
	"analyst":   true,
	"read-only": true,
}

// tenantAuthMiddleware enforces spec.md §4.7's header contract for
// non-public endpoints: a non-empty X-Tenant-Id and a recognized X-Role,
// gated against allowedForRoute. Missing tenant ⇒ 400; missing/invalid
// role ⇒ 403; role absent from the route's allow-list ⇒ 403.
func tenantAuthMiddleware(allowedForRoute []string, next http.Handler) http.Handler {
	allow := make(map[string]bool, len(allowedForRoute))
	for _, r := range allowedForRoute {
		allow[r] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-Id")
		if tenantID == "" {
			writeBadRequest(w, r, "X-Tenant-Id header is required")
			return
		}
		role := r.Header.Get("X-Role")
		if !allowedRoles[role] {
			writeForbidden(w, r, "X-Role header missing or unrecognized")
			return
		}
		if !allow[role] {
			writeForbidden(w, r, "role is not permitted for this endpoint")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal{TenantID: tenantID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

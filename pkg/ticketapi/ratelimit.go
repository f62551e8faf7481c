package ticketapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// tenantBucket is the {tokens, last} token-bucket design of spec.md §3:
// refills by elapsed_seconds * refill rate, clamped at capacity.
type tenantBucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// tenantLimiter shards per-tenant buckets over a sync.Map; no
// cross-tenant coordination is required (spec.md §5).
type tenantLimiter struct {
	buckets  sync.Map // tenantID -> *tenantBucket
	capacity float64
	refill   float64 // tokens per second
	now      func() time.Time
}

func newTenantLimiter(capacity, refillPerSec float64) *tenantLimiter {
	return &tenantLimiter{capacity: capacity, refill: refillPerSec, now: time.Now}
}

// allow consumes one token from tenantID's bucket, creating it at full
// capacity on first use. Returns false when the bucket holds < 1 token.
func (l *tenantLimiter) allow(tenantID string) bool {
	v, _ := l.buckets.LoadOrStore(tenantID, &tenantBucket{tokens: l.capacity, last: l.now()})
	b := v.(*tenantBucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// rateLimitMiddleware wraps next with the tenant-bucket check, assuming
// tenantAuthMiddleware has already populated the request's principal.
func rateLimitMiddleware(limiter *tenantLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFromContext(r.Context())
		if !ok {
			writeInternal(w, r, errNoPrincipal)
			return
		}
		if !limiter.allow(p.TenantID) {
			writeTooManyRequests(w, r, 1)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errNoPrincipal = httpError("rate limit middleware invoked without an authenticated principal")

type httpError string

func (e httpError) Error() string { return string(e) }

// ipRateLimiter is a cheap outer anti-abuse layer, ahead of the per-tenant
// bucket, for unauthenticated or pre-tenant-header traffic such as
// /healthz being hammered (SPEC_FULL.md §5). It wraps the public routes
// as well as the protected ones, and never substitutes for the per-tenant
// bucket on protected routes.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	l.mu.Lock()
	lim, ok := l.visitors[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.visitors[host] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func ipRateLimitMiddleware(limiter *ipRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(r.RemoteAddr) {
			writeTooManyRequests(w, r, 5)
			return
		}
		next.ServeHTTP(w, r)
	})
}

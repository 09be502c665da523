package webhttp

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerIPLimiter throttles requests per client address with one token bucket
// per IP. Buckets idle longer than an hour are pruned on the next lookup
// sweep so the map does not grow without bound.
type PerIPLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*ipBucket
	limit    rate.Limit
	burst    int
	lastScan time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPerIPLimiter allows maxRequests per window per client address.
func NewPerIPLimiter(maxRequests int, window time.Duration) *PerIPLimiter {
	if maxRequests <= 0 {
		maxRequests = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &PerIPLimiter{
		buckets: map[string]*ipBucket{},
		limit:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
	}
}

// Allow reports whether a request from ip fits the budget.
func (l *PerIPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastScan) > time.Hour {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > time.Hour {
				delete(l.buckets, key)
			}
		}
		l.lastScan = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// Middleware rejects over-budget requests with a throttling message.
func (l *PerIPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !l.Allow(clientIP(req)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": "Too many requests. Take a breath and try again in a minute!",
			})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func clientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

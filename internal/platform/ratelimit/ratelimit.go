// Package ratelimit throttles requests per client IP with token buckets.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aaditx/vibeanime/internal/platform/api"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
)

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// Limiter keeps one bucket per client IP. Buckets idle for longer than
// idleTTL are dropped on the next sweep.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	sweptAt time.Time
	now     func() time.Time

	// OnReject writes the 429 response. Defaults to the JSON error envelope.
	OnReject http.HandlerFunc
}

// New returns a Limiter allowing rps requests per second with the given
// burst. rps <= 0 disables limiting.
func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		clients: make(map[string]*client),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *Limiter) Allow(key string) bool {
	if l.rps <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	return c.limiter.AllowN(now, 1)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < l.idleTTL {
		return
	}
	for k, c := range l.clients {
		if now.Sub(c.seen) > l.idleTTL {
			delete(l.clients, k)
		}
	}
	l.sweptAt = now
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || l.Allow(httpserver.ClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		if l.OnReject != nil {
			l.OnReject(w, r)
			return
		}
		rid := httpserver.RequestIDFromContext(r.Context())
		api.RateLimited(w, "RATE_LIMITED", "Too many requests", rid, nil)
	})
}

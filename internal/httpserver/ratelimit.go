// apps/go-server/internal/httpserver/ratelimit.go
//
// Rate limiting for play actions.
// Responsibilities:
//   - One token bucket per account, or per client IP for anonymous players
//     (a guest can mint a new anonymous id by dropping its cookie).
//   - Drop buckets that sat idle long enough to have refilled.

package httpserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// playerLimiter hands out one token bucket per limiter key.
type playerLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*bucket
	lastSweep time.Time
}

// newPlayerLimiter returns nil when perSecond is 0, which disables limiting.
func newPlayerLimiter(perSecond float64, burst int, now func() time.Time) *playerLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	// A bucket idle for burst/rate is full again and can be recreated.
	idle := time.Duration(float64(burst) / perSecond * float64(time.Second))
	if idle < time.Minute {
		idle = time.Minute
	}
	return &playerLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		now:      now,
		limiters: make(map[string]*bucket),
	}
}

func (l *playerLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
	}
	b, ok := l.limiters[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

func (l *playerLimiter) sweepLocked(now time.Time) {
	for k, b := range l.limiters {
		if now.Sub(b.seen) >= l.idle {
			delete(l.limiters, k)
		}
	}
	l.lastSweep = now
}

func (l *playerLimiter) len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// limiterKey is the account id when signed in, else the client IP.
func limiterKey(r *http.Request) string {
	if me := userFrom(r.Context()); me != nil {
		return "user:" + me.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// rateLimit rejects play actions above the per-player rate with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(limiterKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package syncserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// connectLimiter rate-limits new websocket connections per client IP with a
// token bucket each.
type connectLimiter struct {
	clock clockwork.Clock
	rate  rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	cleanupAt time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	limiterCleanupEvery = 5 * time.Minute
	limiterIdle         = 10 * time.Minute
)

func newConnectLimiter(perSecond float64, burst int, clock clockwork.Clock) *connectLimiter {
	return &connectLimiter{
		clock:     clock,
		rate:      rate.Limit(perSecond),
		burst:     burst,
		limiters:  make(map[string]*limiterEntry),
		cleanupAt: clock.Now().Add(limiterCleanupEvery),
	}
}

func (l *connectLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-limiterIdle)
		for k, e := range l.limiters {
			if e.lastSeen.Before(cutoff) {
				delete(l.limiters, k)
			}
		}
		l.cleanupAt = now.Add(limiterCleanupEvery)
	}

	e, ok := l.limiters[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *connectLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package frontdoor

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wavecastsh/wavecast/internal/apierr"
)

// rateLimiter is a simple sliding-window in-memory limiter keyed by remote
// IP, grounded on the teacher's rateLimiter idiom in internal/relay/relay.go
// (map[string][]time.Time, pruned per request).
type rateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	maxPerWin int
	hits      map[string][]time.Time
}

func newRateLimiter(maxPerMinute int) *rateLimiter {
	return &rateLimiter{
		window:    time.Minute,
		maxPerWin: maxPerMinute,
		hits:      make(map[string][]time.Time),
	}
}

// allow reports whether ip may proceed, recording the attempt if so.
func (r *rateLimiter) allow(ip string) bool {
	now := time.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	times := r.hits[ip]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= r.maxPerWin {
		r.hits[ip] = kept
		return false
	}
	r.hits[ip] = append(kept, now)
	return true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitMiddleware rejects requests past the configured per-minute
// ceiling with 429. The relay-injection path is exempt per spec §7
// ("RateLimited ... relay is exempt"): injected requests never pass through
// the public listener's remoteAddr-based path at all, so no explicit
// bypass is needed here beyond that structural separation.
func (d *Door) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.limiter.allow(remoteIP(r)) {
			writeAPIErr(w, apierr.New(apierr.KindRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

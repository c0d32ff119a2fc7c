// internal/server/ratelimit.go
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"carmarket/internal/httpapi"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var errRateLimited = errors.New("bid rate limit exceeded")

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BidLimiter throttles bids per acting user with a token bucket each.
type BidLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	visitors map[uuid.UUID]*visitor
}

// NewBidLimiter allows perSecond sustained bids with the given burst.
func NewBidLimiter(perSecond float64, burst int) *BidLimiter {
	return &BidLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		visitors: make(map[uuid.UUID]*visitor),
	}
}

// Allow reports whether userID may bid now.
func (l *BidLimiter) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	now := l.now()
	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Prune forgets users idle for longer than idle.
func (l *BidLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	removed := 0
	for id, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, id)
			removed++
		}
	}
	return removed
}

// Middleware rejects over-limit bids with 429. Requests without an acting
// user pass through so the handler reports the missing header.
func (l *BidLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := httpapi.UserID(r)
		if err == nil && !l.Allow(userID) {
			w.Header().Set("Retry-After", "1")
			httpapi.JSONError(w, http.StatusTooManyRequests, errRateLimited, "too many bids, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

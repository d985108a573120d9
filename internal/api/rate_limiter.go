package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bond-service/internal/auth"
	apperrors "github.com/bond-service/internal/errors"
)

const (
	// limiterIdleTTL is how long an unused caller limiter is kept
	limiterIdleTTL = 10 * time.Minute
	sweepInterval  = time.Minute
)

type limiterKey struct {
	caller    string
	superuser bool
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages rate limiting for API requests
type RateLimiter struct {
	limiters  map[limiterKey]*limiterEntry
	mu        sync.Mutex
	now       func() time.Time
	lastSweep time.Time

	// Rate limits per caller kind (requests per second)
	userLimit      rate.Limit
	superuserLimit rate.Limit

	// Burst size (number of requests that can be made in a burst)
	burstSize int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(userRPS, superuserRPS, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limiters:       make(map[limiterKey]*limiterEntry),
		now:            time.Now,
		userLimit:      rate.Limit(userRPS),
		superuserLimit: rate.Limit(superuserRPS),
		burstSize:      burst,
	}
}

// getLimiter returns the rate limiter for a caller at its current tier. A
// caller whose tier changes gets a fresh limiter.
func (rl *RateLimiter) getLimiter(caller string, superuser bool) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweep(now)
	}

	key := limiterKey{caller: caller, superuser: superuser}
	if entry, ok := rl.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limit := rl.userLimit
	if superuser {
		limit = rl.superuserLimit
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(limit, rl.burstSize), lastSeen: now}
	rl.limiters[key] = entry
	return entry.limiter
}

// sweep drops limiters idle for longer than limiterIdleTTL; mu must be held
func (rl *RateLimiter) sweep(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// size returns the number of tracked callers
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// RateLimitMiddleware enforces per-user limits; anonymous callers are keyed by IP.
// It must run after AuthenticationMiddleware.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			superuser := false
			if p := auth.PrincipalFromContext(r.Context()); p != nil {
				key = "user:" + p.UserID
				superuser = p.IsSuperuser
			}

			limiter := rl.getLimiter(key, superuser)
			if !limiter.Allow() {
				catErr := apperrors.NewRateLimitError(1)
				w.Header().Set("Retry-After", strconv.Itoa(1))
				respondError(w, catErr.StatusCode, catErr.Code, "Rate limit exceeded. Please try again later.", catErr.Details)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

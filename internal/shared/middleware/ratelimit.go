package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/F3nrir-00/gaming-library-tracker/internal/shared/response"
)

// UserRateLimiter keeps one token bucket per user id.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*limiterEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		limiters: make(map[uuid.UUID]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  time.Hour,
		now:      time.Now,
	}
}

func (l *UserRateLimiter) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than an hour.
func (l *UserRateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	for id, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
}

// StartCleanup runs Cleanup on interval until stop is closed.
func (l *UserRateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// RateLimitPerUser must run after AuthMiddleware.
func RateLimitPerUser(l *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get("userID")
		if !ok {
			c.Next()
			return
		}
		if id, ok := userID.(uuid.UUID); ok && !l.Allow(id) {
			response.TooManyRequests(c, "Too many sync requests, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

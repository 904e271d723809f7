package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per key with the given burst.
// Buckets idle for ten minutes are dropped.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastSeen) > rl.idleTTL {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the sweeper
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow reports whether a request for key may proceed and the tokens left
func (rl *RateLimiter) Allow(key string) (bool, int) {
	l := rl.get(key)
	ok := l.Allow()
	return ok, int(l.Tokens())
}

// RateLimit limits requests per authenticated company, falling back to the
// client IP for anonymous requests. It must run after the JWT middleware.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if companyID := GetCompanyID(c); companyID != uuid.Nil {
			key = "company:" + companyID.String()
		}

		ok, remaining := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		if !ok {
			c.Header("Retry-After", dto.RetryAfterSeconds)
			abortWithError(c, dto.ErrCodeRateLimited, "Too many requests, retry later")
			return
		}
		c.Next()
	}
}

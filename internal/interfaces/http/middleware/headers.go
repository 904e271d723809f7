package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

const (
	RequestIDKey         = "request_id"
	RequestIDHeader      = "X-Request-ID"
	IdempotencyKeyHeader = "Idempotency-Key"

	maxRequestIDLen = 128
)

// RequestID propagates the caller's X-Request-ID or assigns a UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// CORSPolicy lists who may call the API from a browser. With no origins
// configured no CORS headers are sent at all.
type CORSPolicy struct {
	Origins     []string
	Methods     []string
	Headers     []string
	Expose      []string
	Credentials bool
	MaxAge      time.Duration
}

func DefaultCORSPolicy() CORSPolicy {
	return CORSPolicy{
		Methods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		Headers:     []string{"Accept", "Authorization", "Content-Type", "Origin", RequestIDHeader, IdempotencyKeyHeader},
		Expose:      []string{RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", IdempotentReplayHeader},
		Credentials: true,
		MaxAge:      12 * time.Hour,
	}
}

// CORS applies p through go-chi/cors. A preflight ends in the middleware;
// browsers reject credentials with a wildcard origin, so a wildcard drops
// them.
func CORS(p CORSPolicy) gin.HandlerFunc {
	if len(p.Origins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	policy := cors.New(cors.Options{
		AllowedOrigins:   p.Origins,
		AllowedMethods:   p.Methods,
		AllowedHeaders:   p.Headers,
		ExposedHeaders:   p.Expose,
		AllowCredentials: p.Credentials && !slices.Contains(p.Origins, "*"),
		MaxAge:           int(p.MaxAge / time.Second),
	})

	return func(c *gin.Context) {
		passed := false
		policy.Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}

// SecureHeaders sets the response headers of a JSON-only API. HSTS is sent
// when hsts is positive, which only makes sense behind HTTPS.
func SecureHeaders(hsts time.Duration) gin.HandlerFunc {
	headers := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	if hsts > 0 {
		headers["Strict-Transport-Security"] = "max-age=" + strconv.Itoa(int(hsts/time.Second)) + "; includeSubDomains"
	}
	return func(c *gin.Context) {
		for k, v := range headers {
			c.Header(k, v)
		}
		c.Next()
	}
}

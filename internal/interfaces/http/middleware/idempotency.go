package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/erp/settlement/internal/infrastructure/cache"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotentReplayHeader is set on responses replayed from the store
const IdempotentReplayHeader = "Idempotent-Replayed"

const maxIdempotencyKeyLength = 200

// IdempotencyConfig configures the Idempotency-Key middleware
type IdempotencyConfig struct {
	Store cache.ResponseStore
	// TTL is how long a finished response is replayed
	TTL time.Duration
	// LockTTL bounds an in-flight reservation so a crashed request frees its key
	LockTTL time.Duration
	Logger  *zap.Logger
}

// Idempotency replays the response of a POST that carries an
// Idempotency-Key already seen for the same company and route. A reused
// key with a different body, or one whose first request is still running,
// is refused with 409. Server errors and retryable conflicts are not
// stored, so the client may retry them under the same key. When the store
// is unavailable the request runs without protection.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	return func(c *gin.Context) {
		header := c.GetHeader(IdempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || header == "" {
			c.Next()
			return
		}
		if len(header) > maxIdempotencyKeyLength {
			abortWithError(c, dto.ErrCodeBadRequest, "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		key := idempotencyStoreKey(c, header)
		fingerprint := requestFingerprint(c, body)
		log := cfg.Logger.With(zap.String("idempotency_key", header), zap.String("route", c.FullPath()))

		cached, err := cfg.Store.Get(ctx, key)
		if err != nil {
			log.Warn("idempotency store unavailable, running request unprotected", zap.Error(err))
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached, fingerprint)
			return
		}

		reserved, err := cfg.Store.Reserve(ctx, key, cfg.LockTTL)
		if err != nil {
			log.Warn("idempotency store unavailable, running request unprotected", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			// Lost the race or the first request is still running
			if cached, err = cfg.Store.Get(ctx, key); err == nil && cached != nil {
				replay(c, cached, fingerprint)
				return
			}
			c.Header("Retry-After", dto.RetryAfterSeconds)
			abortWithError(c, dto.ErrCodeIdempotencyConflict, "A request with this Idempotency-Key is in progress")
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if !storable(status) {
			if err := cfg.Store.Release(ctx, key); err != nil {
				log.Warn("failed to release idempotency key", zap.Error(err))
			}
			return
		}
		resp := &cache.CachedResponse{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		if err := cfg.Store.Put(ctx, key, resp, cfg.TTL); err != nil {
			log.Warn("failed to store idempotent response", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, cached *cache.CachedResponse, fingerprint string) {
	if cached.Fingerprint != fingerprint {
		abortWithError(c, dto.ErrCodeIdempotencyConflict, "Idempotency-Key was already used with a different request")
		return
	}
	c.Header(IdempotentReplayHeader, "true")
	c.Data(cached.Status, cached.ContentType, cached.Body)
	c.Abort()
}

// storable excludes responses a client is expected to retry
func storable(status int) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return false
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		return false
	}
	return true
}

func idempotencyStoreKey(c *gin.Context, header string) string {
	scope := "anonymous"
	if companyID := GetCompanyID(c); companyID != uuid.Nil {
		scope = companyID.String()
	}
	return scope + ":" + header
}

func requestFingerprint(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte{0})
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// recordingWriter keeps a copy of the response body
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

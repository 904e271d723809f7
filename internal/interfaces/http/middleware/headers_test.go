package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveWith(mw gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fromOrigin(method, origin string) *http.Request {
	req := httptest.NewRequest(method, "/test", nil)
	req.Header.Set("Origin", origin)
	return req
}

func preflight(origin, method string) *http.Request {
	req := fromOrigin(http.MethodOptions, origin)
	req.Header.Set("Access-Control-Request-Method", method)
	return req
}

func TestCORS_NoOriginsConfigured(t *testing.T) {
	w := serveWith(CORS(DefaultCORSPolicy()), fromOrigin(http.MethodGet, "http://malicious.com"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowList(t *testing.T) {
	mw := CORS(CORSPolicy{
		Origins:     []string{"http://localhost:3000", "https://erp.example.com"},
		Methods:     []string{http.MethodGet, http.MethodPost},
		Headers:     []string{"Content-Type", IdempotencyKeyHeader},
		Expose:      []string{RequestIDHeader},
		Credentials: true,
		MaxAge:      time.Hour,
	})

	for origin, want := range map[string]string{
		"http://localhost:3000":    "http://localhost:3000",
		"https://erp.example.com":  "https://erp.example.com",
		"https://evil.example.com": "",
	} {
		w := serveWith(mw, fromOrigin(http.MethodGet, origin))
		assert.Equal(t, http.StatusOK, w.Code, origin)
		assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), origin)
		if want != "" {
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
		}
	}

	t.Run("preflight stops in the middleware", func(t *testing.T) {
		w := serveWith(mw, preflight("http://localhost:3000", http.MethodPost))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
		assert.Empty(t, w.Body.String(), "the route handler did not run")
	})

	t.Run("preflight for a method outside the policy", func(t *testing.T) {
		w := serveWith(mw, preflight("http://localhost:3000", http.MethodPatch))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORS_WildcardDropsCredentials(t *testing.T) {
	w := serveWith(CORS(CORSPolicy{Origins: []string{"*"}, Credentials: true}), fromOrigin(http.MethodGet, "http://anything.com"))

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestID(t *testing.T) {
	w := serveWith(RequestID(), httptest.NewRequest(http.MethodGet, "/test", nil))
	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String(), "handlers see the same id")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	assert.Equal(t, "req-123", serveWith(RequestID(), req).Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	_, err = uuid.Parse(serveWith(RequestID(), req).Header().Get(RequestIDHeader))
	assert.NoError(t, err, "oversized ids are replaced")
}

func TestSecureHeaders(t *testing.T) {
	w := serveWith(SecureHeaders(0), httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	w = serveWith(SecureHeaders(10*time.Minute), httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, "max-age=600; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(log *zap.Logger, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	r.Use(Recovery(log), GinMiddleware(log))
	r.GET("/payments/:id", handler)
	return r
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			r := newTestEngine(zap.New(core), func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/1?expand=allocations", nil))

			require.Len(t, recorded.All(), 1)
			entry := recorded.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, "req-42", fields["request_id"])
			assert.Equal(t, "/payments/:id", fields["route"])
			assert.Equal(t, "expand=allocations", fields["query"])
			assert.EqualValues(t, tt.status, fields["status"])
		})
	}
}

func TestGinMiddleware_RequestContextCarriesLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestEngine(zap.New(core), func(c *gin.Context) {
		L(c.Request.Context()).Info("inside handler")
		assert.Equal(t, "req-42", GetRequestID(c.Request.Context()))
		assert.NotNil(t, GetGinLogger(c))
		c.Status(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payments/1", nil))

	entries := recorded.FilterMessage("inside handler").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestEngine(zap.New(core), func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/1", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ERR_INTERNAL"`)
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}

func TestGetGinLogger_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}

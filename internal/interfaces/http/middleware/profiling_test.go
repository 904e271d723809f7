package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProfilingWithConfig_Labels(t *testing.T) {
	company := uuid.New()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(JWTCompanyIDKey, company)
		c.Next()
	})
	r.Use(ProfilingWithConfig(DefaultProfilingConfig()))

	labels := map[string]string{}
	r.GET("/api/v1/payments/:id/allocations", func(c *gin.Context) {
		for _, key := range []string{"route", "method", "company_id", "operation"} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString()+"/allocations", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/payments/:id/allocations", labels["route"])
	assert.Equal(t, http.MethodGet, labels["method"])
	assert.Equal(t, company.String(), labels["company_id"])
	assert.Equal(t, "payments", labels["operation"])
}

func TestProfilingWithConfig_SkipsAndDisabled(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProfilingConfig
		path    string
		labeled bool
	}{
		{"health skipped", DefaultProfilingConfig(), "/health", false},
		{"api labeled", DefaultProfilingConfig(), "/api/v1/cheques", true},
		{"disabled", ProfilingConfig{Enabled: false}, "/api/v1/cheques", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ProfilingWithConfig(tt.cfg))
			var labeled bool
			r.GET(tt.path, func(c *gin.Context) {
				_, labeled = pprof.Label(c.Request.Context(), "route")
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.labeled, labeled)
		})
	}
}

func TestResourceFromRoute(t *testing.T) {
	tests := map[string]string{
		"/api/v1/payments/:id/allocations": "payments",
		"/api/v1/cheques":                  "cheques",
		"/api/v2/periods/:year/:month/lock": "periods",
		"/health":                          "health",
		"":                                 "",
		"/api/v1/:id":                      "",
	}
	for route, want := range tests {
		assert.Equal(t, want, resourceFromRoute(route), route)
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vx"))
	assert.False(t, isVersionSegment("payments"))
}

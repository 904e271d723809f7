package middleware

import (
	"context"
	"strings"

	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled   bool
	SkipPaths []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/ready", "/metrics"},
	}
}

// ProfilingWithConfig attaches Pyroscope labels to the request: route
// pattern, method, company and the resource the route belongs to
// ("payments", "cheques"). It must run after the JWT middleware for the
// company label to be set.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		telemetry.WithProfilingLabels(c.Request.Context(), extractProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func extractProfilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	var companyID string
	if id := GetCompanyID(c); id != uuid.Nil {
		companyID = id.String()
	}
	labels := telemetry.HTTPRequestLabels(route, c.Request.Method, companyID)
	if resource := resourceFromRoute(route); resource != "" {
		labels[telemetry.ProfilingLabelOperation] = resource
	}
	return labels
}

// resourceFromRoute returns the first static segment after the API prefix.
// "/api/v1/payments/:id/allocations" -> "payments"
func resourceFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}

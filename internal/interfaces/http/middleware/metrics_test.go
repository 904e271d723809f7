package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterPoints(t *testing.T, rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	m := findMetricByName(rm, name)
	require.NotNil(t, m, "%s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data for %s", name)
	return sum.DataPoints
}

func attrValue(set attribute.Set, key string) (string, bool) {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return "", false
	}
	return v.Emit(), true
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	router = gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetricsWithMeter_RequestCounter(t *testing.T) {
	mp, reader := setupTestMeter(t)
	company := uuid.New()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(JWTCompanyIDKey, company)
		c.Next()
	})
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server")))
	router.POST("/api/v1/payments/:id/allocations", func(c *gin.Context) {
		c.Set(ErrorCodeKey, "ERR_INSUFFICIENT_BALANCE")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false})
	})
	router.GET("/api/v1/payments/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString(), nil))
	}
	body := strings.NewReader(`{"lines":[]}`)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+uuid.NewString()+"/allocations", body))

	rm := collectMetrics(t, reader)
	points := counterPoints(t, rm, "http_server_request_total")
	require.Len(t, points, 2)

	byRoute := map[string]metricdata.DataPoint[int64]{}
	for _, p := range points {
		route, _ := attrValue(p.Attributes, "http.route")
		byRoute[route] = p
	}

	get := byRoute["/api/v1/payments/:id"]
	assert.Equal(t, int64(3), get.Value)
	got, _ := attrValue(get.Attributes, "company_id")
	assert.Equal(t, company.String(), got)
	_, hasCode := attrValue(get.Attributes, "error_code")
	assert.False(t, hasCode)

	post := byRoute["/api/v1/payments/:id/allocations"]
	assert.Equal(t, int64(1), post.Value)
	got, _ = attrValue(post.Attributes, "error_code")
	assert.Equal(t, "ERR_INSUFFICIENT_BALANCE", got)
	got, _ = attrValue(post.Attributes, "http.status_code")
	assert.Equal(t, "422", got)

	assert.NotNil(t, findMetricByName(rm, "http_server_request_duration_seconds"))
	assert.NotNil(t, findMetricByName(rm, "http_server_request_size_bytes"))
	assert.NotNil(t, findMetricByName(rm, "http_server_response_size_bytes"))
}

func TestHTTPMetricsWithMeter_ActiveRequestsReturnToZero(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server")))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	points := counterPoints(t, collectMetrics(t, reader), "http_server_active_requests")
	require.Len(t, points, 1)
	assert.Zero(t, points[0].Value)
}

func TestHTTPMetricsWithMeter_UnmatchedRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server")))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/"+uuid.NewString(), nil))

	points := counterPoints(t, collectMetrics(t, reader), "http_server_request_total")
	require.Len(t, points, 1)
	route, _ := attrValue(points[0].Attributes, "http.route")
	assert.Equal(t, "unknown", route)
}

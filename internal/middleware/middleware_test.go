package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/annel0/geocoin/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerSetsTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(NewRequestLogger(logging.NewWriterLogger("http", &buf, logging.INFO)).Handler())

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = c.GetString(TraceIDKey)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Trace-Id"))
	assert.Contains(t, buf.String(), "/ping 204")
}

func TestPrometheusMiddlewareCountsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	mw := NewPrometheusMiddleware("geocoin_test", reg)

	r := gin.New()
	r.Use(mw.Handler())
	mw.RegisterMetricsEndpoint(r, reg)
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(mw.reqErrors.WithLabelValues("GET", "/missing", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "geocoin_test_http_request_duration_seconds")
}

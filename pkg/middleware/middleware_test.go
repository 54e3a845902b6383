package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/dnd/pkg/log"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func TestMetrics(t *testing.T) {
	metrics := NewMetrics("test")
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i != 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	families, err := registry.Gather()
	require.NoError(t, err)

	requests := make(map[string]float64)
	inFlight := -1.0
	for _, family := range families {
		switch family.GetName() {
		case "dnd_test_requests_total":
			for _, m := range family.GetMetric() {
				var status string
				for _, label := range m.GetLabel() {
					if label.GetName() == "status" {
						status = label.GetValue()
					}
				}
				requests[status] = m.GetCounter().GetValue()
			}
		case "dnd_test_requests_in_flight":
			inFlight = family.GetMetric()[0].GetGauge().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{"200": 3, "404": 1}, requests)
	assert.Equal(t, float64(0), inFlight)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.NewLoggerWithWriter("warn", nil, &buf)
	require.NoError(t, err)

	router := gin.New()
	router.Use(NewLogger(logger.WithSubsystem("kv")))
	router.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/error", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	// Successful requests are only logged at debug.
	assert.Empty(t, buf.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error", nil))
	assert.True(t, strings.Contains(buf.String(), `"subsystem":"kv.access"`))
	assert.True(t, strings.Contains(buf.String(), `"path":"/error"`))
}

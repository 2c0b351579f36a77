package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveWebhook("payment_intent.succeeded", "processed")
	m.ObserveWebhook("payment_intent.succeeded", "processed")
	m.ObserveTransition("confirmed", "paid", "updated")
	m.ObserveSideEffect("email", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("payment_intent.succeeded", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingTransitions.WithLabelValues("confirmed", "paid", "updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideEffects.WithLabelValues("email", "failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveWebhook("x", "y")
		m.ObserveTransition("a", "b", "c")
		m.ObserveSideEffect("email", "sent")
	})
}

func TestHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", m.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `payment_reconciler_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
}

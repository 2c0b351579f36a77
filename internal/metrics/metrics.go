package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payment_reconciler"

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	WebhookEvents      *prometheus.CounterVec
	BookingTransitions *prometheus.CounterVec
	SideEffects        *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Stripe webhook deliveries by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		BookingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking state updates by target status and result.",
		}, []string{"status", "payment_status", "result"}),
		SideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Post-commit side effects by channel and result.",
		}, []string{"channel", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.WebhookEvents,
		m.BookingTransitions,
		m.SideEffects,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (tests, extra collectors)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request latency per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// ObserveWebhook counts a webhook delivery outcome
func (m *Metrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveTransition counts a booking state update
func (m *Metrics) ObserveTransition(status, paymentStatus, result string) {
	if m == nil {
		return
	}
	m.BookingTransitions.WithLabelValues(status, paymentStatus, result).Inc()
}

// ObserveSideEffect counts a notification or email attempt
func (m *Metrics) ObserveSideEffect(channel, result string) {
	if m == nil {
		return
	}
	m.SideEffects.WithLabelValues(channel, result).Inc()
}

// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "losmax"

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Metrics groups every collector the service exports
type Metrics struct {
	RequestTotal   *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	AuthEvents     *prometheus.CounterVec
	RateLimitHits  *prometheus.CounterVec
	WSConnections  prometheus.Gauge
	WSMessages     *prometheus.CounterVec
	RemindersSent  *prometheus.CounterVec
	PushDeliveries *prometheus.CounterVec
	TokensPruned   prometheus.Counter

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// New creates the collectors and registers them on reg; collectors already
// registered under the same name are reused
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Authentication operations by outcome",
		}, []string{"operation", "outcome"}),
		RateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open WebSocket connections",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_sent_total",
			Help:      "WebSocket messages sent by type and result",
		}, []string{"type", "result"}),
		RemindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "sent_total",
			Help:      "Reminders delivered by kind",
		}, []string{"kind"}),
		PushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Web push deliveries by result",
		}, []string{"result"}),
		TokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refresh_token_prune_users_total",
			Help:      "Users whose expired refresh tokens were pruned",
		}),
		registerer: reg,
		gatherer:   gatherer,
	}

	m.RequestTotal = register(reg, m.RequestTotal)
	m.RequestLatency = register(reg, m.RequestLatency)
	m.AuthEvents = register(reg, m.AuthEvents)
	m.RateLimitHits = register(reg, m.RateLimitHits)
	m.WSConnections = register(reg, m.WSConnections)
	m.WSMessages = register(reg, m.WSMessages)
	m.RemindersSent = register(reg, m.RemindersSent)
	m.PushDeliveries = register(reg, m.PushDeliveries)
	m.TokensPruned = register(reg, m.TokensPruned)

	return m
}

// NewDefault registers on the global prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// Register adds an externally built collector, such as the database pool's
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registerer.Register(c)
}

// Middleware records request count and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.RequestTotal.With(labels).Inc()
		m.RequestLatency.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the gathered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordAuth counts one authentication operation
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordRateLimit counts one rejected request
func (m *Metrics) RecordRateLimit(route string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(route).Inc()
}

// RecordWSMessage counts one outbound WebSocket message
func (m *Metrics) RecordWSMessage(msgType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.WSMessages.WithLabelValues(msgType, result).Inc()
}

// ConnectionOpened tracks a newly registered WebSocket connection
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// ConnectionClosed tracks a removed WebSocket connection
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordReminder counts one delivered reminder
func (m *Metrics) RecordReminder(kind string) {
	if m == nil {
		return
	}
	m.RemindersSent.WithLabelValues(kind).Inc()
}

// RecordPush counts one web push attempt; result is "ok", "gone" or "error"
func (m *Metrics) RecordPush(result string) {
	if m == nil {
		return
	}
	m.PushDeliveries.WithLabelValues(result).Inc()
}

// RecordPruned adds the number of users whose tokens were pruned
func (m *Metrics) RecordPruned(n int64) {
	if m == nil {
		return
	}
	m.TokensPruned.Add(float64(n))
}

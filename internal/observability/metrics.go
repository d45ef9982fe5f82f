package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Messages handed to a connection, by delivery path.",
		},
		[]string{"path"},
	)
	mailboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_mailbox_pending_messages",
			Help: "Messages waiting in offline mailboxes.",
		},
	)
	mailboxEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_mailbox_evictions_total",
			Help: "Offline messages dropped because a mailbox was full.",
		},
	)
	persistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_message_persist_failures_total",
			Help: "Messages that could not be written to the message store.",
		},
	)
	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		deliveriesTotal,
		mailboxPending,
		mailboxEvictionsTotal,
		persistFailuresTotal,
		rateLimitedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

// IncDelivery counts a message pushed to a connection. path is one of
// "echo", "live" or "mailbox".
func IncDelivery(path string) {
	deliveriesTotal.WithLabelValues(path).Inc()
}

func SetMailboxPending(n int) {
	mailboxPending.Set(float64(n))
}

func IncMailboxEviction() {
	mailboxEvictionsTotal.Inc()
}

func IncPersistFailure() {
	persistFailuresTotal.Inc()
}

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

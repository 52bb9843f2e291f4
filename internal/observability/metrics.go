package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay node.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	peerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_peer_calls_total",
			Help: "Total number of fan-out calls made to peers.",
		},
		[]string{"peer", "outcome"},
	)
	peerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_peer_call_duration_seconds",
			Help:    "Latency of individual fan-out calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"peer"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		peerCallsTotal,
		peerCallDuration,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
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

// MetricsHandler serves the Prometheus exposition format.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// PeerCallObserver feeds fan-out outcomes into the peer call metrics.
type PeerCallObserver struct{}

// ObservePeerCall counts one settled peer call and records its latency.
func (PeerCallObserver) ObservePeerCall(peer string, ok bool, elapsed time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	peerCallsTotal.WithLabelValues(peer, outcome).Inc()
	peerCallDuration.WithLabelValues(peer).Observe(elapsed.Seconds())
}

// IncAMQPPublishError counts an event the broker did not accept.
func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

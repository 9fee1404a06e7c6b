package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RelayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_relay_requests_total",
		Help: "Relayed backend requests by method and upstream status",
	}, []string{"method", "status"})
	RelayFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_relay_failures_total",
		Help: "Relay-internal failures converted to proxy errors",
	})
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_ws_connections",
		Help: "Currently bridged chat websocket connections",
	})
	WsMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_ws_messages_total",
		Help: "Chat messages sent through the bridge",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		RelayRequestsTotal, RelayFailuresTotal,
		WsConnections, WsMessagesTotal,
		HTTPRequestsTotal, HTTPRequestDuration,
	)
}

// GinMiddleware records request counts and latencies for Prometheus.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

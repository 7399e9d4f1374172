package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_backend_requests_total",
			Help: "Total number of requests sent to the go-live backend",
		},
		[]string{"operation", "outcome"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golive_backend_request_duration_seconds",
			Help:    "Go-live backend request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_tool_calls_total",
			Help: "Total number of MCP tool invocations",
		},
		[]string{"tool", "outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"endpoint", "status"},
	)
)

func ObserveBackend(operation, outcome string, d time.Duration) {
	backendRequestsTotal.WithLabelValues(operation, outcome).Inc()
	backendRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func ObserveToolCall(tool, outcome string) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// Middleware counts served requests per route and status.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		httpRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

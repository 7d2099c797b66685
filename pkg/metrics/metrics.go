package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's prometheus metrics.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	groupJoinsTotal     *prometheus.CounterVec
	groupsResolvedTotal *prometheus.CounterVec

	gatewayOpsTotal    *prometheus.CounterVec
	gatewayOpDuration  *prometheus.HistogramVec
	schedulerSweepTime prometheus.Histogram
}

// Default is the process-wide collector, created on first use.
var Default = NewCollector()

// NewCollector registers the metric set with the default registry.
func NewCollector() *Collector {
	return &Collector{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		groupJoinsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "group_joins_total",
				Help: "Join attempts by outcome (ok, full, duplicate, not_active)",
			},
			[]string{"outcome"},
		),
		groupsResolvedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groups_resolved_total",
				Help: "Groups moved to a terminal status",
			},
			[]string{"status"},
		),
		gatewayOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_operations_total",
				Help: "Gateway calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		gatewayOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_gateway_operation_duration_seconds",
				Help:    "Gateway call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		schedulerSweepTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deadline_sweep_duration_seconds",
				Help:    "Duration of a full deadline sweep",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// ObserveJoin records a join attempt outcome.
func (c *Collector) ObserveJoin(outcome string) {
	c.groupJoinsTotal.WithLabelValues(outcome).Inc()
}

// ObserveGroupResolved records a terminal group transition.
func (c *Collector) ObserveGroupResolved(status string) {
	c.groupsResolvedTotal.WithLabelValues(status).Inc()
}

// ObserveGatewayOp records one gateway call.
func (c *Collector) ObserveGatewayOp(operation, result string, d time.Duration) {
	c.gatewayOpsTotal.WithLabelValues(operation, result).Inc()
	c.gatewayOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveSweep records the duration of a deadline sweep.
func (c *Collector) ObserveSweep(d time.Duration) {
	c.schedulerSweepTime.Observe(d.Seconds())
}

// GinMiddleware instruments HTTP requests.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		c.httpRequestsTotal.WithLabelValues(
			ctx.Request.Method, endpoint, strconv.Itoa(ctx.Writer.Status()),
		).Inc()
		c.httpRequestDuration.WithLabelValues(
			ctx.Request.Method, endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

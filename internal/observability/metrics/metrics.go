package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service-level prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	jobRuns     *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	jobSkips    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	pointsIssued   *prometheus.CounterVec
	pointsRedeemed *prometheus.CounterVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loyalty_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_scheduler_job_runs_total",
			Help: "Scheduler job invocations.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_scheduler_job_errors_total",
			Help: "Scheduler job item failures.",
		}, []string{"job"}),
		jobSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_scheduler_job_skips_total",
			Help: "Scheduler job items skipped as already processed.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loyalty_scheduler_job_duration_seconds",
			Help:    "Scheduler job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		pointsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_points_issued_total",
			Help: "Points credited to customers, by transaction type.",
		}, []string{"type"}),
		pointsRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_points_redeemed_total",
			Help: "Points debited from customers.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.jobRuns,
		m.jobErrors,
		m.jobSkips,
		m.jobDuration,
		m.pointsIssued,
		m.pointsRedeemed,
	)

	return m
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	return reg
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobSkip(job string) {
	m.jobSkips.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) AddPointsIssued(txType string, points int64) {
	if points <= 0 {
		return
	}
	m.pointsIssued.WithLabelValues(txType).Add(float64(points))
}

func (m *Metrics) AddPointsRedeemed(txType string, points int64) {
	if points <= 0 {
		return
	}
	m.pointsRedeemed.WithLabelValues(txType).Add(float64(points))
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

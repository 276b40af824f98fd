package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Assignment metrics
	AssignmentsTotal       *prometheus.CounterVec
	AssignmentFailures     *prometheus.CounterVec
	ReassignmentCapReached prometheus.Counter

	// Call metrics
	CallTransitions *prometheus.CounterVec
	WebhooksTotal   *prometheus.CounterVec
	DialFailures    prometheus.Counter

	// Scheduler metrics
	SchedulerRuns       *prometheus.CounterVec
	SchedulerCandidates prometheus.Histogram
	SchedulerLastRun    prometheus.Gauge
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AssignmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignments_total",
				Help: "Leads bound to a telecaller, by kind (auto, manual, reassign)",
			},
			[]string{"kind"},
		),
		AssignmentFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignment_failures_total",
				Help: "Assignment attempts that did not bind a lead, by reason",
			},
			[]string{"reason"},
		),
		ReassignmentCapReached: f.NewCounter(
			prometheus.CounterOpts{
				Name: "lead_reassignment_cap_reached_total",
				Help: "Reassignments skipped because the lead reached its cap",
			},
		),
		CallTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_status_transitions_total",
				Help: "Applied call status transitions, by target status",
			},
			[]string{"status"},
		),
		WebhooksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telephony_webhooks_total",
				Help: "Telephony webhooks received, by kind and result",
			},
			[]string{"kind", "result"},
		),
		DialFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "telephony_dial_failures_total",
				Help: "Outbound call requests rejected by the telephony provider",
			},
		),
		SchedulerRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_runs_total",
				Help: "Scheduler executions, by job and result",
			},
			[]string{"job", "result"},
		),
		SchedulerCandidates: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reassignment_candidates",
				Help:    "Stale leads found per reassignment pass",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
		SchedulerLastRun: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "reassignment_last_run_timestamp_seconds",
				Help: "Unix time of the last completed reassignment pass",
			},
		),
	}
}

func (m *Metrics) Assignment(kind string) {
	if m == nil {
		return
	}
	m.AssignmentsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) AssignmentFailed(reason string) {
	if m == nil {
		return
	}
	m.AssignmentFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CapReached() {
	if m == nil {
		return
	}
	m.ReassignmentCapReached.Inc()
}

func (m *Metrics) CallTransition(status string) {
	if m == nil {
		return
	}
	m.CallTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Webhook(kind, result string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) DialFailed() {
	if m == nil {
		return
	}
	m.DialFailures.Inc()
}

// ReassignmentPass records one completed scheduler pass.
func (m *Metrics) ReassignmentPass(candidates, failed int, at time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	m.SchedulerRuns.WithLabelValues("reassign", result).Inc()
	m.SchedulerCandidates.Observe(float64(candidates))
	m.SchedulerLastRun.Set(float64(at.Unix()))
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SchedulerRuns.WithLabelValues(job, result).Inc()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

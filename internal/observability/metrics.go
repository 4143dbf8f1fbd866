package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec

	schedulerRuns     *prometheus.CounterVec
	schedulerDuration *prometheus.HistogramVec
	escalations       *prometheus.CounterVec
	closures          prometheus.Counter
	reminders         *prometheus.CounterVec
	assignments       *prometheus.CounterVec
}

// NewMetrics registers every collector on a private registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Scheduler runs by job and outcome.",
		}, []string{"job", "outcome"}),
		schedulerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_run_duration_seconds",
			Help:      "Scheduler run latency.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_escalations_total",
			Help:      "SLA escalations recorded by level.",
		}, []string{"level"}),
		closures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_auto_closed_total",
			Help:      "Resolved tickets closed after the grace period.",
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_reminders_total",
			Help:      "Approval reminder sends by outcome.",
		}, []string{"outcome"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_assignments_total",
			Help:      "Automatic assignments by strategy and whether a backup redirect applied.",
		}, []string{"strategy", "redirected"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.schedulerRuns,
		m.schedulerDuration,
		m.escalations,
		m.closures,
		m.reminders,
		m.assignments,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordSchedulerRun records one scheduler run.
func (m *Metrics) RecordSchedulerRun(job string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.schedulerRuns.WithLabelValues(job, outcome).Inc()
	m.schedulerDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordEscalation counts a recorded escalation level.
func (m *Metrics) RecordEscalation(level int) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordClosure counts an auto-closed ticket.
func (m *Metrics) RecordClosure() {
	if m == nil {
		return
	}
	m.closures.Inc()
}

// RecordReminder counts a reminder send attempt.
func (m *Metrics) RecordReminder(sent bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

// RecordAssignment counts an automatic assignment.
func (m *Metrics) RecordAssignment(strategy string, redirected bool) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(strategy, strconv.FormatBool(redirected)).Inc()
}

// Package metrics holds the Prometheus collectors of the moderation bot and
// the admin API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	events         *prometheus.CounterVec
	violations     *prometheus.CounterVec
	actions        *prometheus.CounterVec
	platformErrors *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	deletions      *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
	httpReqs       *prometheus.CounterVec
	httpLat        *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_events_total",
				Help: "Inbound chat events by pipeline outcome.",
			},
			[]string{"outcome"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_violations_total",
				Help: "Rule violations by category and decided action.",
			},
			[]string{"category", "action"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_actions_total",
				Help: "Moderation actions by penalty and result.",
			},
			[]string{"penalty", "result"},
		),
		platformErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_platform_errors_total",
				Help: "Failed chat platform calls by error class.",
			},
			[]string{"class"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_job_runs_total",
				Help: "Background job ticks by job and result.",
			},
			[]string{"job", "result"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatguard_job_duration_seconds",
				Help:    "Duration of background job ticks.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		deletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_autodelete_total",
				Help: "Swept scheduled deletions by result.",
			},
			[]string{"result"},
		),
		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_reconciled_total",
				Help: "Reconciled records by kind and result.",
			},
			[]string{"kind", "result"},
		),
		httpReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatguard_http_requests_total",
				Help: "Admin API requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpLat: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatguard_http_request_duration_seconds",
				Help:    "Admin API request duration.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.events, m.violations, m.actions, m.platformErrors,
			m.jobRuns, m.jobDuration, m.deletions, m.reconciled,
			m.httpReqs, m.httpLat,
		)
	}
	return m
}

func (m *Metrics) Event(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Violation(category, action string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(category, action).Inc()
}

func (m *Metrics) Action(penalty, result string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(penalty, result).Inc()
}

func (m *Metrics) PlatformError(class string) {
	if m == nil {
		return
	}
	m.platformErrors.WithLabelValues(class).Inc()
}

func (m *Metrics) JobRun(job, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	if took > 0 {
		m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
	}
}

func (m *Metrics) Deletion(result string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(result).Inc()
}

func (m *Metrics) Reconciled(kind, result string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) HTTPRequest(method, path string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpReqs.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpLat.WithLabelValues(method, path).Observe(took.Seconds())
}

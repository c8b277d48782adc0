// Package metrics exposes prometheus counters for the daemon. A nil *Metrics
// is valid and records nothing, so one-shot CLI commands can skip it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "casetrack"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	notifications *prometheus.CounterVec
	probes        *prometheus.CounterVec
	dailyRuns     *prometheus.CounterVec
	lastDailyRun  prometheus.Gauge
	dueReminders  prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		// Labels: category, result (sent, failed)
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "notifications_total",
			Help:      "Reminder notifications attempted, by category and result",
		}, []string{"category", "result"}),

		// Labels: code (200, 400, 401, 404, 429, 503, other)
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selftest",
			Name:      "probes_total",
			Help:      "Self-test probes by classified response code",
		}, []string{"code"}),

		// Labels: result (recorded, aborted, skipped, failed)
		dailyRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selftest",
			Name:      "daily_runs_total",
			Help:      "Daily self-test runs by result",
		}, []string{"result"}),

		lastDailyRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "selftest",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last daily self-test attempt",
		}),

		dueReminders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "due",
			Help:      "Reminders inside the lead window at the last evaluation",
		}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Notification records one notification attempt.
func (m *Metrics) Notification(category string, ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(category, result).Inc()
}

// DueReminders records how many reminders were due at the last evaluation.
func (m *Metrics) DueReminders(n int) {
	if m == nil {
		return
	}
	m.dueReminders.Set(float64(n))
}

// Probe records one self-test probe outcome. Codes outside the tracked set
// are counted as "other".
func (m *Metrics) Probe(code int) {
	if m == nil {
		return
	}
	label := "other"
	switch code {
	case 200, 400, 401, 404, 429, 503:
		label = strconv.Itoa(code)
	}
	m.probes.WithLabelValues(label).Inc()
}

// DailyRun records one daily self-test attempt.
func (m *Metrics) DailyRun(result string, at time.Time) {
	if m == nil {
		return
	}
	m.dailyRuns.WithLabelValues(result).Inc()
	m.lastDailyRun.Set(float64(at.Unix()))
}

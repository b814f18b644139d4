// Package metrics provides Prometheus metrics for the schedule engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	MutationsTotal    *prometheus.CounterVec
	BackendErrors     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ScheduleStatus    *prometheus.GaugeVec
	MilestonesTracked *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_mutations_total",
				Help: "Milestone mutations by operation and result.",
			},
			[]string{"op", "result"},
		),
		BackendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_backend_errors_total",
				Help: "Persistence backend failures by operation and error type.",
			},
			[]string{"op", "type"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_request_duration_seconds",
				Help:    "HTTP request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ScheduleStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_project_schedule_status",
				Help: "Derived schedule status per project (1 = current classification).",
			},
			[]string{"project", "status"},
		),
		MilestonesTracked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_milestones_tracked",
				Help: "Milestones currently held in local snapshots.",
			},
			[]string{"project"},
		),
		registry: reg,
	}

	reg.MustRegister(m.MutationsTotal)
	reg.MustRegister(m.BackendErrors)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ScheduleStatus)
	reg.MustRegister(m.MilestonesTracked)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMutation increments the mutation counter.
func (m *Metrics) RecordMutation(op, result string) {
	m.MutationsTotal.WithLabelValues(op, result).Inc()
}

// RecordBackendError increments the backend failure counter.
func (m *Metrics) RecordBackendError(op, errType string) {
	m.BackendErrors.WithLabelValues(op, errType).Inc()
}

// ObserveDuration records request duration for a route.
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// SetMilestonesTracked records the local snapshot size for a project.
func (m *Metrics) SetMilestonesTracked(project string, n int) {
	m.MilestonesTracked.WithLabelValues(project).Set(float64(n))
}

// SetScheduleStatus marks a project's current derived status. The previous
// classification is cleared so exactly one label carries a 1.
func (m *Metrics) SetScheduleStatus(project, status string) {
	for _, s := range []string{"on_track", "ahead", "behind", "completed"} {
		v := 0.0
		if s == status {
			v = 1.0
		}
		m.ScheduleStatus.WithLabelValues(project, s).Set(v)
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. A nil *Metrics is safe to use so tests
// and tools can skip registration.
type Metrics struct {
	registry *prometheus.Registry

	jobsFinalized   *prometheus.CounterVec
	taskResolutions *prometheus.CounterVec
	duplicateEvents prometheus.Counter
	unknownTasks    prometheus.Counter
}

// New registers the service counters on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		jobsFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comic_jobs_finalized_total",
			Help: "Jobs driven to a terminal status, labeled by outcome.",
		}, []string{"status"}),
		taskResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comic_task_resolutions_total",
			Help: "Provider tasks resolved to a terminal state, labeled by outcome.",
		}, []string{"outcome"}),
		duplicateEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "comic_task_duplicate_resolutions_total",
			Help: "Completion events discarded because the task was already terminal.",
		}),
		unknownTasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "comic_callback_unknown_tasks_total",
			Help: "Callback deliveries referencing task ids with no local record.",
		}),
	}
}

func (m *Metrics) JobFinalized(status string) {
	if m == nil {
		return
	}
	m.jobsFinalized.WithLabelValues(status).Inc()
}

func (m *Metrics) TaskResolved(outcome string) {
	if m == nil {
		return
	}
	m.taskResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DuplicateResolution() {
	if m == nil {
		return
	}
	m.duplicateEvents.Inc()
}

func (m *Metrics) UnknownTask() {
	if m == nil {
		return
	}
	m.unknownTasks.Inc()
}

// Handler exposes the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

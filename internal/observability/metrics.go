// Package observability exposes run metrics and a small status server
// for one pipeline run.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the run-level counters. Each run gets its own
// registry so concurrent runs in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	ProcessesSpawned   prometheus.Counter
	ProcessesExited    *prometheus.CounterVec
	ForcedTerminations prometheus.Counter
	QueuesClosed       prometheus.Counter
}

// NewMetrics builds and registers the run counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ProcessesSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couplet_processes_spawned_total",
			Help: "Model processes started by the run.",
		}),
		ProcessesExited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "couplet_processes_exited_total",
			Help: "Model processes that exited, by result.",
		}, []string{"result"}),
		ForcedTerminations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couplet_forced_terminations_total",
			Help: "Model processes killed after the grace period.",
		}),
		QueuesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couplet_queues_closed_total",
			Help: "Channel queues closed during endpoint release.",
		}),
	}
	m.registry.MustRegister(m.ProcessesSpawned, m.ProcessesExited, m.ForcedTerminations, m.QueuesClosed)
	return m
}

// Handler serves the run's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

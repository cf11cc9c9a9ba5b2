// Package metrics exposes Prometheus metrics for synchronization passes.
package metrics

import (
	"net/http"
	"time"

	"github.com/grovetools/wsync/pkg/scheduler"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wsync"

// Pass outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Metrics holds the wsync collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	Passes           *prometheus.CounterVec
	Units            *prometheus.CounterVec
	PassDuration     prometheus.Histogram
	LocationProblems *prometheus.CounterVec
	Tasks            *prometheus.CounterVec
}

// New creates the collectors in a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Synchronization passes by outcome.",
		}, []string{"outcome"}),
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Import units processed by kind and result status.",
		}, []string{"kind", "status"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of synchronization passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		LocationProblems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_problems_total",
			Help:      "Locations excluded from a pass because of an update problem.",
		}, []string{"location"}),
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Background tasks by name and severity.",
		}, []string{"task", "severity"}),
	}

	m.registry.MustRegister(
		m.Passes,
		m.Units,
		m.PassDuration,
		m.LocationProblems,
		m.Tasks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObservePass records a finished pass. A nil receiver records nothing.
func (m *Metrics) ObservePass(outcome string, duration time.Duration, results workspace.Results) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(outcome).Inc()
	m.PassDuration.Observe(duration.Seconds())
	for u, res := range results {
		m.Units.WithLabelValues(string(u.Kind), string(res.Status)).Inc()
	}
}

// ObserveLocationProblem records a location dropped from a pass.
func (m *Metrics) ObserveLocationProblem(location string) {
	if m == nil {
		return
	}
	m.LocationProblems.WithLabelValues(location).Inc()
}

// Report implements scheduler.StatusReporter.
func (m *Metrics) Report(s scheduler.Status) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(s.Name, string(s.Severity)).Inc()
}

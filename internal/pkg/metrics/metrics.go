// Package metrics exposes Prometheus metrics for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the pipeline metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	ModelVariables   prometheus.Gauge
	ModelConstraints prometheus.Gauge
	Objective        prometheus.Gauge
}

// NewRegistry returns a registry with every metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.RunsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_runs_total",
			Help: "Total number of pipeline runs by solver and terminal state",
		},
		[]string{"solver", "state"},
	)
	r.StageDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60, 300},
		},
		[]string{"stage"},
	)
	r.ModelVariables = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "planner_model_variables",
		Help: "Number of variables of the last built model",
	})
	r.ModelConstraints = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "planner_model_constraints",
		Help: "Number of constraints of the last built model",
	})
	r.Objective = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "planner_objective",
		Help: "Objective value of the last solved run",
	})
	return r
}

// RecordRun counts a finished run.
func (r *Registry) RecordRun(solver, state string) {
	r.RunsTotal.WithLabelValues(solver, state).Inc()
}

// ObserveStage records how long a stage took.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordModel records the size of a built model.
func (r *Registry) RecordModel(variables, constraints int) {
	r.ModelVariables.Set(float64(variables))
	r.ModelConstraints.Set(float64(constraints))
}

// RecordObjective records the objective of a solved run.
func (r *Registry) RecordObjective(v float64) {
	r.Objective.Set(v)
}

// WriteTextfile writes the metrics in text exposition format to path, for
// the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Package metrics exposes Prometheus collectors for runs and tasks.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentboard"

// Task outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the run collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runsStarted    *prometheus.CounterVec
	runsActive     prometheus.Gauge
	runTasks       *prometheus.HistogramVec
	tasksCompleted *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered under the same names so repeated construction in
// tests does not panic. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		runsStarted: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Runs started, by mode.",
		}, []string{"mode"})),
		runsActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently executing.",
		})),
		runTasks: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_tasks",
			Help:      "Number of tasks per run.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}, []string{"mode"})),
		tasksCompleted: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks that completed successfully, by mode.",
		}, []string{"mode"})),
		tasksFailed: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Tasks that failed or were cancelled, by mode.",
		}, []string{"mode"})),
		taskDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of one agent invocation.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"mode", "outcome"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RunStarted counts a run and marks it active.
func (m *Metrics) RunStarted(mode string, tasks int) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
	m.runTasks.WithLabelValues(mode).Observe(float64(tasks))
	m.runsActive.Inc()
}

// RunFinished marks a run inactive.
func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}

// TaskFinished records one task outcome and its duration.
func (m *Metrics) TaskFinished(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if outcome == OutcomeCompleted {
		m.tasksCompleted.WithLabelValues(mode).Inc()
	} else {
		m.tasksFailed.WithLabelValues(mode).Inc()
	}
	m.taskDuration.WithLabelValues(mode, outcome).Observe(d.Seconds())
}

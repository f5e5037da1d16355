package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RunLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.RunStarted("build", 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsStarted.WithLabelValues("build")))

	m.TaskFinished("build", OutcomeCompleted, 2*time.Second)
	m.TaskFinished("build", OutcomeFailed, time.Second)
	m.TaskFinished("build", OutcomeCancelled, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksCompleted.WithLabelValues("build")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksFailed.WithLabelValues("build")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.taskDuration))

	m.RunFinished()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsActive))
}

func TestMustNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.RunStarted("research", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.runsStarted.WithLabelValues("research")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted("build", 1)
		m.TaskFinished("build", OutcomeCompleted, time.Second)
		m.RunFinished()
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_AttachesEveryMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestQueueJobsEnqueuedTotal_IncrementsPerKind(t *testing.T) {
	QueueJobsEnqueuedTotal.Reset()
	QueueJobsEnqueuedTotal.WithLabelValues("search").Inc()
	QueueJobsEnqueuedTotal.WithLabelValues("search").Inc()
	QueueJobsEnqueuedTotal.WithLabelValues("import").Inc()

	var m dto.Metric
	require.NoError(t, QueueJobsEnqueuedTotal.WithLabelValues("search").Write(&m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func TestDecisionOutcomesTotal_TracksDistinctOutcomes(t *testing.T) {
	DecisionOutcomesTotal.Reset()
	DecisionOutcomesTotal.WithLabelValues("selected").Inc()
	DecisionOutcomesTotal.WithLabelValues("no_candidates").Inc()
	DecisionOutcomesTotal.WithLabelValues("no_candidates").Inc()

	var m dto.Metric
	require.NoError(t, DecisionOutcomesTotal.WithLabelValues("no_candidates").Write(&m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

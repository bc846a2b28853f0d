package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(OrderCyclesTotal)
	OrderCyclesTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OrderCyclesTotal))

	before = testutil.ToFloat64(InventoryCacheHitsTotal)
	InventoryCacheHitsTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(InventoryCacheHitsTotal))
}

func TestOwnerAPICallsLabeled(t *testing.T) {
	c := OwnerAPICallsTotal.WithLabelValues("ok")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestScheduledJobsGauge(t *testing.T) {
	g := ScheduledJobs.WithLabelValues("orders")
	g.Set(3)

	var m dto.Metric
	require.NoError(t, g.Write(&m))
	assert.InDelta(t, 3.0, m.GetGauge().GetValue(), 0.001)
}

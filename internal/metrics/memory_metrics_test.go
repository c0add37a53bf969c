package metrics_test

import (
	"testing"

	"github.com/23skdu/slab/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getGaugeValue retrieves the current value of a gauge metric
func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	err := gauge.Write(&m)
	require.NoError(t, err)
	return m.GetGauge().GetValue()
}

func TestForPoolResolvesLabelledChildren(t *testing.T) {
	c := metrics.ForPool("metrics-test")

	c.Allocated.Inc()
	c.Allocated.Inc()
	c.Exhausted.Inc()
	c.Released.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SlabAllocationsTotal.WithLabelValues("metrics-test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SlabAllocationsTotal.WithLabelValues("metrics-test", "exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SlabReleasesTotal.WithLabelValues("metrics-test")))
}

func TestCellGauges(t *testing.T) {
	c := metrics.ForPool("gauge-test")
	c.Capacity.Set(128)
	c.InUse.Set(3)
	c.InUse.Dec()

	assert.Equal(t, 128.0, getGaugeValue(t, c.Capacity))
	assert.Equal(t, 2.0, getGaugeValue(t, c.InUse))
}

func TestCellAllocatorPaths(t *testing.T) {
	for _, path := range []string{"cell", "fallback"} {
		before := testutil.ToFloat64(metrics.CellAllocatorBytesTotal.WithLabelValues(path))
		metrics.CellAllocatorBytesTotal.WithLabelValues(path).Add(64)
		after := testutil.ToFloat64(metrics.CellAllocatorBytesTotal.WithLabelValues(path))
		assert.Equal(t, 64.0, after-before, "path %s", path)
	}
}

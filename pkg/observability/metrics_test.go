package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ChecksTotal.WithLabelValues("granted", "cache").Inc()
	m.CacheHitsTotal.Inc()
	m.CacheHitsTotal.Inc()
	m.MutationsTotal.WithLabelValues("set").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues("granted", "cache")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MutationsTotal.WithLabelValues("set")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]struct{}, len(families))
	for _, f := range families {
		names[f.GetName()] = struct{}{}
	}
	assert.Contains(t, names, "gatehouse_permission_checks_total")
	assert.Contains(t, names, "gatehouse_permission_cache_hits_total")
	assert.Contains(t, names, "gatehouse_permission_mutations_total")
}

func TestNopMetricsIsolated(t *testing.T) {
	// Two nop instances must not collide on registration.
	a := NopMetrics()
	b := NopMetrics()

	a.CacheMissesTotal.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.CacheMissesTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.CacheMissesTotal))
}

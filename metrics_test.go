package sfatrie

import (
	"context"
	"testing"

	"github.com/hupe1980/sfatrie/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicMetricsCollector(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	ix, _ := builtIndex(t, WithMetricsCollector(metrics))

	series := testutil.NewRNG(21).RandomWalks(3, 32)
	for _, q := range series {
		_, err := ix.Search(q, 3)
		require.NoError(t, err)
	}
	_, err := ix.Search(series[0], 0)
	require.ErrorIs(t, err, ErrInvalidK)
	_, err = ix.Search(series[0][:8], 1)
	require.Error(t, err)
	require.NoError(t, ix.Compress())
	require.ErrorIs(t, ix.BuildWholeSeries(context.Background(), series, nil), ErrAlreadyBuilt)

	st := metrics.GetStats()
	assert.Equal(t, int64(2), st.BuildCount)
	assert.Equal(t, int64(1), st.BuildErrors)
	assert.Equal(t, int64(300), st.BuildItems)
	// invalid k is rejected before a search runs
	assert.Equal(t, int64(4), st.SearchCount)
	assert.Equal(t, int64(1), st.SearchErrors)
	assert.Equal(t, int64(1), st.CompressCount)
	assert.Zero(t, st.MergeCount)
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc, err := NewPrometheusCollector(reg, "sfatrie")
	require.NoError(t, err)

	ix, _ := builtIndex(t, WithMetricsCollector(pc))
	for _, q := range testutil.NewRNG(22).RandomWalks(4, 32) {
		_, err := ix.Search(q, 2)
		require.NoError(t, err)
		_, err = ix.SearchRange(q, 1)
		require.NoError(t, err)
	}
	require.NoError(t, ix.Compress())

	assert.Equal(t, 1.0, promtest.ToFloat64(pc.builds.WithLabelValues("WholeSeries")))
	assert.Equal(t, 300.0, promtest.ToFloat64(pc.buildItems.WithLabelValues("WholeSeries")))
	assert.Equal(t, 4.0, promtest.ToFloat64(pc.searches.WithLabelValues("knn")))
	assert.Equal(t, 4.0, promtest.ToFloat64(pc.searches.WithLabelValues("range")))
	assert.Equal(t, float64(ix.Stats().Leaves), promtest.ToFloat64(pc.leaves))
	assert.Equal(t, 3, promtest.CollectAndCount(pc.opLatency), "build, search and compress")

	_, err = NewPrometheusCollector(reg, "sfatrie")
	assert.Error(t, err, "registering twice fails")
}

func TestPrometheusCollector_Merge(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc, err := NewPrometheusCollector(reg, "")
	require.NoError(t, err)

	ix, err := NewIndex(testConfig(32), WithMetricsCollector(pc))
	require.NoError(t, err)
	require.NoError(t, ix.BuildPartitioned(context.Background(), testutil.NewRNG(23).RandomWalks(200, 32), nil, nil))

	assert.Positive(t, promtest.ToFloat64(pc.mergedShards))
	assert.Zero(t, promtest.ToFloat64(pc.opErrors.WithLabelValues("merge")))
}

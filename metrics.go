package sfatrie

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems;
// PrometheusCollector is a ready-made implementation.
type MetricsCollector interface {
	// RecordBuild is called after each build. count is the number of
	// indexed series or windows.
	RecordBuild(mode string, count int, duration time.Duration, err error)

	// RecordSearch is called after each search. kind is "knn", "range" or
	// "approx"; k is the number of neighbors requested, 0 for range searches.
	RecordSearch(kind string, k int, duration time.Duration, err error)

	// RecordCompress is called after Compress. leaves is the leaf count
	// after compression.
	RecordCompress(leaves int, duration time.Duration)

	// RecordMerge is called after a partitioned build merged its partitions.
	RecordMerge(partitions int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(string, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCompress(int, time.Duration)              {}
func (NoopMetricsCollector) RecordMerge(int, time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildItems       atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	CompressCount    atomic.Int64
	MergeCount       atomic.Int64
	MergeErrors      atomic.Int64
	MergePartitions  atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ string, count int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildItems.Add(int64(count))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ string, _ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordCompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompress(int, time.Duration) {
	b.CompressCount.Add(1)
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(partitions int, _ time.Duration, err error) {
	b.MergeCount.Add(1)
	b.MergePartitions.Add(int64(partitions))
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	st := BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildItems:      b.BuildItems.Load(),
		SearchCount:     b.SearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		CompressCount:   b.CompressCount.Load(),
		MergeCount:      b.MergeCount.Load(),
		MergeErrors:     b.MergeErrors.Load(),
		MergePartitions: b.MergePartitions.Load(),
	}
	if st.SearchCount > 0 {
		st.SearchAvgNanos = b.SearchTotalNanos.Load() / st.SearchCount
	}
	return st
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildItems      int64
	SearchCount     int64
	SearchErrors    int64
	SearchAvgNanos  int64
	CompressCount   int64
	MergeCount      int64
	MergeErrors     int64
	MergePartitions int64
}

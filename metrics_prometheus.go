package sfatrie

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports index metrics to a Prometheus registry.
type PrometheusCollector struct {
	builds       *prometheus.CounterVec
	buildItems   *prometheus.CounterVec
	opLatency    *prometheus.HistogramVec
	opErrors     *prometheus.CounterVec
	searches     *prometheus.CounterVec
	leaves       prometheus.Gauge
	mergedShards prometheus.Counter
}

// NewPrometheusCollector creates the collectors under namespace and
// registers them with reg.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	p := &PrometheusCollector{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Index builds by matching mode.",
		}, []string{"mode"}),
		buildItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_items_total",
			Help:      "Series or windows indexed by matching mode.",
		}, []string{"mode"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of index operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed index operations.",
		}, []string{"op"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by kind.",
		}, []string{"kind"}),
		leaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compressed_leaves",
			Help:      "Leaf count after the last compression.",
		}),
		mergedShards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_partitions_total",
			Help:      "Partition tries merged by partitioned builds.",
		}),
	}
	for _, c := range []prometheus.Collector{
		p.builds, p.buildItems, p.opLatency, p.opErrors, p.searches, p.leaves, p.mergedShards,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RecordBuild implements MetricsCollector.
func (p *PrometheusCollector) RecordBuild(mode string, count int, duration time.Duration, err error) {
	p.opLatency.WithLabelValues("build").Observe(duration.Seconds())
	if err != nil {
		p.opErrors.WithLabelValues("build").Inc()
		return
	}
	p.builds.WithLabelValues(mode).Inc()
	p.buildItems.WithLabelValues(mode).Add(float64(count))
}

// RecordSearch implements MetricsCollector.
func (p *PrometheusCollector) RecordSearch(kind string, _ int, duration time.Duration, err error) {
	p.opLatency.WithLabelValues("search").Observe(duration.Seconds())
	p.searches.WithLabelValues(kind).Inc()
	if err != nil {
		p.opErrors.WithLabelValues("search").Inc()
	}
}

// RecordCompress implements MetricsCollector.
func (p *PrometheusCollector) RecordCompress(leaves int, duration time.Duration) {
	p.opLatency.WithLabelValues("compress").Observe(duration.Seconds())
	p.leaves.Set(float64(leaves))
}

// RecordMerge implements MetricsCollector.
func (p *PrometheusCollector) RecordMerge(partitions int, duration time.Duration, err error) {
	p.opLatency.WithLabelValues("merge").Observe(duration.Seconds())
	if err != nil {
		p.opErrors.WithLabelValues("merge").Inc()
		return
	}
	p.mergedShards.Add(float64(partitions))
}

package sfatrie

import (
	"log/slog"

	"github.com/hupe1980/sfatrie/compress"
	"github.com/hupe1980/sfatrie/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	pool             *resource.Pool
	compression      compress.Kind
}

// Option configures NewIndex and the snapshot loaders.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &sfatrie.BasicMetricsCollector{}
//	ix, _ := sfatrie.NewIndex(cfg, sfatrie.WithMetricsCollector(metrics))
//	// ... build and search ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
//	logger := sfatrie.NewJSONLogger(slog.LevelInfo)
//	ix, _ := sfatrie.NewIndex(cfg, sfatrie.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithPool sets the worker pool used by BuildPartitioned when it is called
// without one. The index does not close it.
func WithPool(p *resource.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithCompression selects the snapshot codec. Default ZSTD.
func WithCompression(kind compress.Kind) Option {
	return func(o *options) {
		o.compression = kind
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      compress.ZSTD,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

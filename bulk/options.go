package bulk

import (
	"log/slog"
	"path"

	"github.com/hupe1980/sfatrie/compress"
	"github.com/hupe1980/sfatrie/resource"
)

const (
	// DefaultBlockRecords is the number of records per flushed block.
	DefaultBlockRecords = 4096
	// DefaultQueueDepth is the capacity of the producer to writer queue.
	DefaultQueueDepth = 8
	// ManifestName is the name of the manifest blob within the directory.
	ManifestName = "manifest.json"
)

type options struct {
	dir          string
	compression  compress.Kind
	blockRecords int
	queueDepth   int
	controller   *resource.Controller
	pool         *resource.Pool
	compress     bool
	logger       *slog.Logger
}

// Option configures a Partitioner or a Loader.
type Option func(*options)

// WithDir places the manifest and buckets under dir in the store.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithCompression sets the block codec. Default ZSTD.
func WithCompression(kind compress.Kind) Option {
	return func(o *options) {
		o.compression = kind
	}
}

// WithBlockRecords sets how many records a producer buffers per bucket
// before flushing a block.
func WithBlockRecords(n int) Option {
	return func(o *options) {
		o.blockRecords = n
	}
}

// WithQueueDepth sets the number of encoded blocks that may wait for the
// writer before producers block.
func WithQueueDepth(n int) Option {
	return func(o *options) {
		o.queueDepth = n
	}
}

// WithController limits buffered block bytes and bucket IO throughput.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithPool sets the worker pool the Loader builds bucket tries on.
// Without one, buckets are built sequentially.
func WithPool(p *resource.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithCompress makes the Loader compress the merged trie.
func WithCompress(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithLogger sets a logger for partition and load events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(opts []Option) options {
	o := options{
		compression:  compress.ZSTD,
		blockRecords: DefaultBlockRecords,
		queueDepth:   DefaultQueueDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.blockRecords <= 0 {
		o.blockRecords = DefaultBlockRecords
	}
	if o.queueDepth <= 0 {
		o.queueDepth = DefaultQueueDepth
	}
	return o
}

func (o *options) name(elem ...string) string {
	return path.Join(append([]string{o.dir}, elem...)...)
}

func (o *options) log(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

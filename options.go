package stoicheia

import (
	"log/slog"
	"time"

	"github.com/LDSLab/stoicheia/codec"
)

// Synchronous is the durability level of the SQLite journal.
type Synchronous string

const (
	SynchronousOff    Synchronous = "off"
	SynchronousNormal Synchronous = "normal"
	SynchronousFull   Synchronous = "full"
)

type options struct {
	synchronous Synchronous
	compression codec.Compression
	fillValue   float32
	busyTimeout time.Duration
	logger      *Logger
	metrics     MetricsCollector
}

// Option configures Open.
type Option func(*options)

// WithSynchronous sets the SQLite synchronous pragma. The default is off:
// the engine favors throughput and relies on the WAL journal for
// crash consistency of committed transactions.
func WithSynchronous(s Synchronous) Option {
	return func(o *options) {
		o.synchronous = s
	}
}

// WithCompression sets the write-path compression. The default is lz4;
// brotli is reserved for cold data and the archive tier.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithFillValue sets the value written into fetched cells no patch
// covers. The default is 0.
func WithFillValue(v float32) Option {
	return func(o *options) {
		o.fillValue = v
	}
}

// WithBusyTimeout bounds how long a statement waits on a competing
// handle's lock. The default is 5 seconds.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel is a convenience wrapper for
// WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures operation metrics. Pass nil to disable.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		synchronous: SynchronousOff,
		compression: codec.CompressionLZ4,
		fillValue:   0,
		busyTimeout: 5 * time.Second,
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

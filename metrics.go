package stoicheia

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives a callback after each engine operation.
// Implement it to integrate with a monitoring system.
type MetricsCollector interface {
	// RecordCommit is called after each commit; err is nil on success.
	RecordCommit(duration time.Duration, err error)

	// RecordFetch is called after each fetch. cells is the number of
	// output cells assembled.
	RecordFetch(cells int, duration time.Duration, err error)

	// RecordUntag is called after each untag. removed is the number of
	// commits the GC deleted.
	RecordUntag(removed int, duration time.Duration, err error)

	// RecordArchive is called after each archive or restore. patches is
	// the number of blobs moved.
	RecordArchive(patches int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCommit(time.Duration, error)       {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordUntag(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordArchive(int, time.Duration, error) {}

// BasicMetricsCollector keeps simple in-memory counters. Useful for
// debugging and tests without an external monitoring stack.
type BasicMetricsCollector struct {
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
	FetchCount       atomic.Int64
	FetchErrors      atomic.Int64
	FetchCells       atomic.Int64
	FetchTotalNanos  atomic.Int64
	UntagCount       atomic.Int64
	UntagErrors      atomic.Int64
	CommitsCollected atomic.Int64
	ArchiveCount     atomic.Int64
	ArchiveErrors    atomic.Int64
	ArchivePatches   atomic.Int64
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(cells int, duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchCells.Add(int64(cells))
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordUntag implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUntag(removed int, duration time.Duration, err error) {
	b.UntagCount.Add(1)
	b.CommitsCollected.Add(int64(removed))
	if err != nil {
		b.UntagErrors.Add(1)
	}
}

// RecordArchive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArchive(patches int, duration time.Duration, err error) {
	b.ArchiveCount.Add(1)
	b.ArchivePatches.Add(int64(patches))
	if err != nil {
		b.ArchiveErrors.Add(1)
	}
}

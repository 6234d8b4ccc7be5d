package volfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    writeBytes prometheus.Counter
//	    readLatency prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordWrite(bytes int, duration time.Duration, err error) {
//	    p.writeBytes.Add(float64(bytes))
//	}
type MetricsCollector interface {
	// RecordCreate is called after each create_file.
	RecordCreate(duration time.Duration, err error)

	// RecordWrite is called after each write_file. bytes is the content
	// length that was requested.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordRead is called after each read_file. bytes is zero on error.
	RecordRead(bytes int, duration time.Duration, err error)

	// RecordDelete is called after each delete_file.
	RecordDelete(duration time.Duration, err error)

	// RecordSnapshot is called after each save, load, checkpoint or restore.
	// bytes is the arena size of the image.
	RecordSnapshot(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error)        {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)        {}
func (NoopMetricsCollector) RecordSnapshot(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	CreateCount       atomic.Int64
	CreateErrors      atomic.Int64
	WriteCount        atomic.Int64
	WriteErrors       atomic.Int64
	WriteBytes        atomic.Int64
	WriteTotalNanos   atomic.Int64
	ReadCount         atomic.Int64
	ReadErrors        atomic.Int64
	ReadBytes         atomic.Int64
	ReadTotalNanos    atomic.Int64
	DeleteCount       atomic.Int64
	DeleteErrors      atomic.Int64
	SnapshotCount     atomic.Int64
	SnapshotErrors    atomic.Int64
	SnapshotTotalNano atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(duration time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(int64(bytes))
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadBytes.Add(int64(bytes))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(bytes int, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotTotalNano.Add(duration.Nanoseconds())
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:      b.CreateCount.Load(),
		CreateErrors:     b.CreateErrors.Load(),
		WriteCount:       b.WriteCount.Load(),
		WriteErrors:      b.WriteErrors.Load(),
		WriteBytes:       b.WriteBytes.Load(),
		WriteAvgNanos:    avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		ReadCount:        b.ReadCount.Load(),
		ReadErrors:       b.ReadErrors.Load(),
		ReadBytes:        b.ReadBytes.Load(),
		ReadAvgNanos:     avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
		SnapshotAvgNanos: avg(b.SnapshotTotalNano.Load(), b.SnapshotCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount      int64 `json:"create_count"`
	CreateErrors     int64 `json:"create_errors"`
	WriteCount       int64 `json:"write_count"`
	WriteErrors      int64 `json:"write_errors"`
	WriteBytes       int64 `json:"write_bytes"`
	WriteAvgNanos    int64 `json:"write_avg_ns"`
	ReadCount        int64 `json:"read_count"`
	ReadErrors       int64 `json:"read_errors"`
	ReadBytes        int64 `json:"read_bytes"`
	ReadAvgNanos     int64 `json:"read_avg_ns"`
	DeleteCount      int64 `json:"delete_count"`
	DeleteErrors     int64 `json:"delete_errors"`
	SnapshotCount    int64 `json:"snapshot_count"`
	SnapshotErrors   int64 `json:"snapshot_errors"`
	SnapshotAvgNanos int64 `json:"snapshot_avg_ns"`
}

package volfs

import (
	"log/slog"
	"time"

	"github.com/hupe1980/volfs/internal/blockstore"
	"github.com/hupe1980/volfs/internal/catalog"
	"github.com/hupe1980/volfs/internal/fs"
	"github.com/hupe1980/volfs/snapshot"
)

// Default geometry: 2048 blocks of 512 bytes, 1 MiB in total.
const (
	DefaultBlockSize   = 512
	DefaultTotalBlocks = 2048
)

// Limits bounds the directory, user, file and allowed-user tables.
// Zero means unbounded.
type Limits = catalog.Limits

// DefaultLimits returns 10 directories, 10 users, 100 files per directory
// and 10 allowed users per file.
func DefaultLimits() Limits { return catalog.DefaultLimits() }

type options struct {
	blockSize        int
	totalBlocks      int
	limits           Limits
	policy           blockstore.Policy
	metricsCollector MetricsCollector
	logger           *Logger
	now              func() time.Time
	compression      snapshot.Compression
	fsys             fs.FileSystem
}

// Option configures New, Load, Open and Restore.
//
// Geometry only applies to a fresh volume; a loaded volume keeps the
// geometry stored in its snapshot.
type Option func(*options)

// WithGeometry sets the block size in bytes and the number of blocks.
func WithGeometry(blockSize, totalBlocks int) Option {
	return func(o *options) {
		o.blockSize = blockSize
		o.totalBlocks = totalBlocks
	}
}

// WithLimits sets the table bounds.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithFirstFitAllocation makes the allocator reuse freed block runs.
//
// The default bump allocator never hands out a block below its high-water
// mark, so create/delete cycles eventually exhaust the volume even while
// free blocks remain. First-fit avoids that at the cost of start blocks
// that depend on deletion history.
func WithFirstFitAllocation() Option {
	return func(o *options) {
		o.policy = blockstore.PolicyFirstFit
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &volfs.BasicMetricsCollector{}
//	v, _ := volfs.New(volfs.WithMetricsCollector(metrics))
//	// ... use v ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d (%d bytes)\n", stats.WriteCount, stats.WriteBytes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := volfs.NewJSONLogger(slog.LevelInfo)
//	v, _ := volfs.New(volfs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
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

// WithClock replaces time.Now for file creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithCompression selects the payload compression used by Save.
func WithCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithFileSystem replaces the OS file system used by Save and Load.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		blockSize:        DefaultBlockSize,
		totalBlocks:      DefaultTotalBlocks,
		limits:           catalog.DefaultLimits(),
		policy:           blockstore.PolicyBump,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		now:              time.Now,
		compression:      snapshot.Zstd,
		fsys:             fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.fsys == nil {
		o.fsys = fs.Default
	}
	return o
}

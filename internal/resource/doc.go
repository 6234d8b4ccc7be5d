// Package resource bounds the work done by snapshot and checkpoint I/O.
//
// A Controller governs three resources:
//
//   - Memory: bytes of encoded snapshots held in flight. Acquisition is
//     non-blocking and fails with ErrMemoryLimitExceeded.
//   - Background workers: concurrent blob deletions during checkpoint
//     pruning, bounded by a weighted semaphore.
//   - I/O bandwidth: a token bucket shared by RateLimitedWriter and
//     RateLimitedReader, used by blobstore.ThrottledStore.
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 4,
//	    IOLimitBytesPerSec:   8 << 20,
//	})
//	w := resource.NewRateLimitedWriter(ctx, dst, rc)
//
// Every method is safe for concurrent use, and every method on a nil
// *Controller is a no-op that never blocks.
package resource

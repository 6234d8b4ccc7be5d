// Package volfs emulates a single-volume file store: a fixed block-addressed
// disk, a flat set of directories holding files, per-file ownership and
// read lists, and a durable snapshot of the whole volume.
//
// # Quick Start
//
//	v, _ := volfs.New() // 2048 blocks of 512 bytes
//	_ = v.CreateDirectory("docs")
//	_ = v.CreateFile("docs", "a.txt", 100, "alice", []string{"bob"})
//	_ = v.WriteFile("docs", "a.txt", "alice", []byte("hello"))
//	data, _ := v.ReadFile("docs", "a.txt", "bob") // "hello" + 95 zero bytes
//
// # Files and blocks
//
// A file's size is fixed when it is created. CreateFile reserves a
// contiguous run of ceil(size/blockSize) blocks; writes overwrite a prefix
// of that run and never grow it. DeleteFile zeroes the run and returns it to
// the free count.
//
// The default allocator is a bump allocator: runs are handed out at a
// high-water mark that never moves back, so freed runs are not reused and
// create/delete cycles eventually fail with ErrInsufficientSpace while
// blocks are still free. WithFirstFitAllocation reuses the lowest gap that
// fits instead.
//
// # Access control
//
// The owner and "admin" may read, write and delete a file. Identities in the
// file's allowed list may only read. Listing and DescribeFile are not
// checked. Identities are plain strings; the user table is informational.
//
// # Persistence
//
//	_ = v.Save(ctx, "filesystem_state.bin")
//	v, err := volfs.Open(ctx, "filesystem_state.bin") // empty volume if missing
//
// Save writes a temporary file and renames it into place. Load decodes into
// a fresh volume and checks its block accounting before returning it.
//
// Numbered generations in a blob store (local directory, S3, MinIO) are
// kept by package checkpoint:
//
//	store := checkpoint.NewStore(blobstore.NewMemoryStore())
//	ver, _ := v.Checkpoint(ctx, store)
//	v2, _ := volfs.Restore(ctx, store, ver.ID)
//
// # Errors
//
// Operations return *OpError values that match the sentinels in this
// package with errors.Is: ErrNotFound, ErrDuplicateName,
// ErrCapacityExceeded, ErrInsufficientSpace, ErrAccessDenied,
// ErrContentTooLarge, ErrPersistence. A failed operation changes nothing.
package volfs

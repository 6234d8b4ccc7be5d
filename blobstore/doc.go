// Package blobstore abstracts the storage that holds volume checkpoints.
//
// A BlobStore maps flat names to immutable byte blobs. Put replaces a blob
// atomically: readers observe either the previous content or the new one,
// never a mix. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system, read through mmap
//   - MemoryStore: process memory, for tests
//   - ThrottledStore: bandwidth limits around any other store
//   - s3.Store and s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore

// Package s3 stores volume checkpoints in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("volumes/prod"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	cp := checkpoint.NewStore(store)
//	version, err := vol.Checkpoint(ctx, cp)
//
// With several writers, NewWithCommitTable keeps the CURRENT pointer in a
// DynamoDB table so that concurrent commits cannot overwrite each other.
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large snapshots
//   - CRC32C integrity checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3

// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible systems such as Ceph,
// SeaweedFS and Garage, without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minio.Dial(ctx, "localhost:9000", "minioadmin", "minioadmin",
//	    "volumes", "prod/", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cp := checkpoint.NewStore(store)
//
// Callers that already hold a *minio.Client use NewStore instead.
package minio

// Package checkpoint keeps numbered snapshot generations of a volume in a
// blobstore.BlobStore.
//
// Each Save encodes a snapshot.Image into a new blob named
// SNAPSHOT-000001.bin, SNAPSHOT-000002.bin and so on, then points the
// CURRENT blob at it. A crash between the two writes leaves CURRENT at the
// previous generation, so readers always find a complete snapshot.
//
//	store := checkpoint.NewStore(blobstore.NewLocalStore("/var/lib/volfs"))
//	v, err := store.Save(ctx, img)
//	img, v, err = store.Load(ctx)
//	removed, err := store.Prune(ctx, 3)
//
// A Store serializes its own operations. Several processes sharing one
// bucket need a BlobStore with conditional commits, such as
// s3.DDBCommitStore.
package checkpoint

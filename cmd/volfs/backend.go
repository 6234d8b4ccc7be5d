package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/volfs"
	"github.com/hupe1980/volfs/blobstore"
	miniostore "github.com/hupe1980/volfs/blobstore/minio"
	s3store "github.com/hupe1980/volfs/blobstore/s3"
	"github.com/hupe1980/volfs/checkpoint"
)

// backend is where the CLI keeps the volume between runs.
type backend interface {
	// Load returns the saved volume, or an error matching
	// volfs.ErrNoSnapshot when nothing was saved yet.
	Load(ctx context.Context, optFns ...volfs.Option) (*volfs.Volume, error)
	Save(ctx context.Context, v *volfs.Volume) error
	String() string
}

// fileBackend keeps a single snapshot file.
type fileBackend struct {
	path string
}

func (b *fileBackend) Load(ctx context.Context, optFns ...volfs.Option) (*volfs.Volume, error) {
	return volfs.Load(ctx, b.path, optFns...)
}

func (b *fileBackend) Save(ctx context.Context, v *volfs.Volume) error {
	return v.Save(ctx, b.path)
}

func (b *fileBackend) String() string { return b.path }

// checkpointBackend keeps numbered generations in a blob store and prunes
// all but the newest keep after every save.
type checkpointBackend struct {
	store *checkpoint.Store
	keep  int
	name  string
}

func (b *checkpointBackend) Load(ctx context.Context, optFns ...volfs.Option) (*volfs.Volume, error) {
	return volfs.Restore(ctx, b.store, 0, optFns...)
}

func (b *checkpointBackend) Save(ctx context.Context, v *volfs.Volume) error {
	if _, err := v.Checkpoint(ctx, b.store); err != nil {
		return err
	}
	if b.keep > 0 {
		if _, err := b.store.Prune(ctx, b.keep); err != nil {
			return fmt.Errorf("prune %s: %w", b.name, err)
		}
	}
	return nil
}

func (b *checkpointBackend) String() string { return b.name }

func openBackend(ctx context.Context, cfg *Config) (backend, error) {
	compression, err := cfg.compression()
	if err != nil {
		return nil, err
	}

	var (
		blobs blobstore.BlobStore
		name  string
	)
	switch cfg.Backend {
	case "file":
		return &fileBackend{path: cfg.State}, nil

	case "local":
		blobs = blobstore.NewLocalStore(cfg.State)
		name = "local:" + cfg.State

	case "s3":
		r := cfg.RemoteConfig
		optFns := []s3store.Option{s3store.WithPrefix(r.Prefix)}
		if r.Region != "" {
			optFns = append(optFns, s3store.WithRegion(r.Region))
		}
		if r.Endpoint != "" {
			optFns = append(optFns, s3store.WithEndpoint(r.Endpoint), s3store.WithPathStyle())
		}
		if r.DDBTable != "" {
			blobs, err = s3store.NewWithCommitTable(ctx, r.Bucket, r.DDBTable, optFns...)
		} else {
			blobs, err = s3store.New(ctx, r.Bucket, optFns...)
		}
		if err != nil {
			return nil, err
		}
		name = "s3://" + r.Bucket + "/" + r.Prefix

	case "minio":
		r := cfg.RemoteConfig
		store, err := miniostore.Dial(ctx, r.MinioEndpoint, r.MinioAccessKey, r.MinioSecretKey, r.Bucket, r.Prefix, r.MinioSecure)
		if err != nil {
			return nil, err
		}
		blobs = store
		name = "minio://" + r.MinioEndpoint + "/" + r.Bucket + "/" + r.Prefix

	default:
		return nil, errors.New("unknown backend " + cfg.Backend)
	}

	if cfg.IOLimit > 0 {
		blobs = blobstore.NewThrottledStore(blobs, cfg.IOLimit)
	}
	return &checkpointBackend{
		store: checkpoint.NewStore(blobs, checkpoint.WithCompression(compression)),
		keep:  cfg.KeepVersions,
		name:  name,
	}, nil
}

// openVolume loads the saved volume or, on first start, creates one seeded
// with the stock users and directories.
func openVolume(ctx context.Context, b backend, optFns ...volfs.Option) (*volfs.Volume, bool, error) {
	v, err := b.Load(ctx, optFns...)
	if err == nil {
		return v, false, nil
	}
	if !errors.Is(err, volfs.ErrNoSnapshot) {
		return nil, false, err
	}

	v, err = volfs.New(optFns...)
	if err != nil {
		return nil, false, err
	}
	if err := seed(v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

var (
	seedUsers       = []string{"admin", "user1", "user2"}
	seedDirectories = []string{"root", "documents"}
)

func seed(v *volfs.Volume) error {
	for _, u := range seedUsers {
		if err := v.CreateUser(u); err != nil {
			return err
		}
	}
	for _, d := range seedDirectories {
		if err := v.CreateDirectory(d); err != nil {
			return err
		}
	}
	return nil
}

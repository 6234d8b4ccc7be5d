package blobstore

import (
	"context"
	"io"

	"github.com/hupe1980/volfs/internal/resource"
)

// ThrottledStore limits the bandwidth another BlobStore sees. Puts wait for
// IO budget before they are forwarded; reads are charged as they stream.
type ThrottledStore struct {
	inner BlobStore
	rc    *resource.Controller
}

// NewThrottledStore wraps inner with a shared budget of bytesPerSec for
// reads and writes. Zero or less disables throttling.
func NewThrottledStore(inner BlobStore, bytesPerSec int64) *ThrottledStore {
	var rc *resource.Controller
	if bytesPerSec > 0 {
		rc = resource.NewController(resource.Config{IOLimitBytesPerSec: bytesPerSec})
	}
	return &ThrottledStore{inner: inner, rc: rc}
}

// Open opens a blob whose reads are rate limited.
func (s *ThrottledStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledBlob{Blob: b, rc: s.rc}, nil
}

// Put waits for len(data) bytes of budget, then writes through.
func (s *ThrottledStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.rc.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

// Delete writes through.
func (s *ThrottledStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List writes through.
func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type throttledBlob struct {
	Blob
	rc *resource.Controller
}

func (b *throttledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.rc.AcquireIO(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.Blob.ReadAt(ctx, p, off)
}

func (b *throttledBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	rc, err := b.Blob.ReadRange(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{resource.NewRateLimitedReader(ctx, rc, b.rc), rc}, nil
}

package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/volfs/blobstore"
	"github.com/hupe1980/volfs/snapshot"
)

func testImage(fill byte) *snapshot.Image {
	arena := make([]byte, 512*8)
	arena[0] = fill
	return &snapshot.Image{
		Header: snapshot.Header{BlockSize: 512, TotalBlocks: 8, FreeBlocks: 7, HighWater: 1},
		Arena:  arena,
		Users:  []string{"admin"},
		Directories: []snapshot.Directory{{
			Name:  "docs",
			Files: []snapshot.File{{Name: "a.txt", Size: 1, Owner: "admin"}},
		}},
	}
}

func TestVersionName(t *testing.T) {
	assert.Equal(t, "SNAPSHOT-000001.bin", VersionName(1))
	assert.Equal(t, "SNAPSHOT-1234567.bin", VersionName(1234567))

	id, ok := ParseVersionName("SNAPSHOT-000042.bin")
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"CURRENT", "SNAPSHOT-.bin", "SNAPSHOT-000000.bin", "SNAPSHOT-12x.bin", "SNAPSHOT-000001.json"} {
		_, ok := ParseVersionName(bad)
		assert.False(t, ok, bad)
	}
}

func TestStore_Empty(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemoryStore())

	_, _, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoCheckpoint)

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)

	n, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs)

	v1, err := s.Save(ctx, testImage('a'))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1.ID)
	assert.Equal(t, "SNAPSHOT-000001.bin", v1.Name)
	assert.Positive(t, v1.Size)

	v2, err := s.Save(ctx, testImage('b'))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v2.ID)

	img, v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, v.ID)
	assert.Equal(t, testImage('b'), img)

	img, v, err = s.LoadVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, v1, v)
	assert.Equal(t, byte('a'), img.Arena[0])

	_, _, err = s.LoadVersion(ctx, 9)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	cur, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur)

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v1, versions[0])
	assert.Equal(t, v2, versions[1])
}

func TestStore_LocalBackend(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewLocalStore(filepath.Join(t.TempDir(), "cp")), WithCompression(snapshot.LZ4))

	_, err := s.Save(ctx, testImage('x'))
	require.NoError(t, err)

	img, v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.ID)
	assert.Equal(t, testImage('x'), img)
}

func TestStore_CorruptGeneration(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs)

	_, err := s.Save(ctx, testImage('a'))
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, VersionName(1), []byte("garbage")))

	_, _, err = s.Load(ctx)
	require.ErrorIs(t, err, snapshot.ErrTruncated)
}

func TestStore_InvalidPointer(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, CurrentName, []byte("MANIFEST-1")))

	_, _, err := NewStore(blobs).Load(ctx)
	require.ErrorIs(t, err, ErrInvalidPointer)
}

// flakyStore fails Puts of a chosen name.
type flakyStore struct {
	blobstore.BlobStore
	failName string
	deletes  atomic.Int32
}

func (f *flakyStore) Put(ctx context.Context, name string, data []byte) error {
	if name == f.failName {
		return errors.New("network down")
	}
	return f.BlobStore.Put(ctx, name, data)
}

func (f *flakyStore) Delete(ctx context.Context, name string) error {
	f.deletes.Add(1)
	return f.BlobStore.Delete(ctx, name)
}

func TestStore_FailedCommitKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	blobs := &flakyStore{BlobStore: blobstore.NewMemoryStore()}
	s := NewStore(blobs)

	_, err := s.Save(ctx, testImage('a'))
	require.NoError(t, err)

	blobs.failName = CurrentName
	_, err = s.Save(ctx, testImage('b'))
	require.ErrorContains(t, err, "network down")

	img, v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.ID)
	assert.Equal(t, byte('a'), img.Arena[0])

	// The orphan is skipped by numbering.
	blobs.failName = ""
	v3, err := s.Save(ctx, testImage('c'))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v3.ID)
}

func TestStore_DeleteVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemoryStore())

	for i := 0; i < 2; i++ {
		_, err := s.Save(ctx, testImage(byte(i)))
		require.NoError(t, err)
	}

	require.ErrorIs(t, s.DeleteVersion(ctx, 2), ErrCurrentVersion)
	require.NoError(t, s.DeleteVersion(ctx, 1))

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, uint64(2), versions[0].ID)
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	blobs := &flakyStore{BlobStore: blobstore.NewMemoryStore()}
	s := NewStore(blobs, WithLimits(Limits{MaxConcurrentDeletes: 2}))

	for i := 0; i < 6; i++ {
		_, err := s.Save(ctx, testImage(byte(i)))
		require.NoError(t, err)
	}

	n, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int32(4), blobs.deletes.Load())

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, uint64(5), versions[0].ID)
	assert.Equal(t, uint64(6), versions[1].ID)

	// keep below one still keeps the current generation.
	n, err = s.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), v.ID)
}

func TestStore_PruneKeepsRolledBackCurrent(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs)

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, testImage(byte(i)))
		require.NoError(t, err)
	}
	require.NoError(t, blobs.Put(ctx, CurrentName, []byte(VersionName(1))))

	n, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, uint64(1), versions[0].ID)
	assert.Equal(t, uint64(3), versions[1].ID)
}

func TestStore_MemoryLimit(t *testing.T) {
	s := NewStore(blobstore.NewMemoryStore(), WithLimits(Limits{MemoryLimitBytes: 1024}))

	_, err := s.Save(context.Background(), testImage('a'))
	require.Error(t, err)
}

func TestStore_PruneCanceled(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs)
	for i := 0; i < 3; i++ {
		_, err := s.Save(context.Background(), testImage(byte(i)))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Prune(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/volfs/internal/fs"
)

func TestLocalStore(t *testing.T) {
	exerciseStore(t, NewLocalStore(filepath.Join(t.TempDir(), "blobs")))
}

func TestLocalStore_Mappable(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "a.bin", []byte("mapped")))

	b, err := store.Open(ctx, "a.bin")
	require.NoError(t, err)

	m, ok := b.(Mappable)
	require.True(t, ok)
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(data))

	require.NoError(t, b.Close())
	_, err = m.Bytes()
	require.Error(t, err)
}

func TestLocalStore_InvalidNames(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	for _, name := range []string{"", "../escape", "a/b", "x.tmp-1"} {
		require.Error(t, store.Put(ctx, name, []byte("x")), name)
		_, err := store.Open(ctx, name)
		require.Error(t, err, name)
	}
}

func TestLocalStore_ListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(ctx, "keep.bin", []byte("x")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.bin.tmp-abc"), []byte("partial"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "keep.dir"), 0o755))

	names, err := store.List(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.bin"}, names)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_FailedPutKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(nil)
	store := NewLocalStore(t.TempDir(), WithFileSystem(faulty))

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("SNAPSHOT-000001.bin")))

	faulty.AddRule("CURRENT", fs.Fault{FailOnRename: true})
	require.Error(t, store.Put(ctx, "CURRENT", []byte("SNAPSHOT-000002.bin")))
	faulty.ClearRules()

	got, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "SNAPSHOT-000001.bin", string(got))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT"}, names)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewLocalStore(t.TempDir())
	require.ErrorIs(t, store.Put(ctx, "a", nil), context.Canceled)
	_, err := store.Open(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}

package volfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/volfs/blobstore"
	"github.com/hupe1980/volfs/checkpoint"
	"github.com/hupe1980/volfs/internal/fs"
	"github.com/hupe1980/volfs/snapshot"
	"github.com/hupe1980/volfs/testutil"
)

// populate builds a small volume with content, a deleted file and users.
func populate(t *testing.T, optFns ...Option) *Volume {
	t.Helper()
	v := newTestVolume(t, optFns...)
	rng := testutil.NewRNG(5)

	for _, u := range []string{"admin", "user1", "user2"} {
		require.NoError(t, v.CreateUser(u))
	}
	for _, d := range []string{"root", "documents", "empty"} {
		require.NoError(t, v.CreateDirectory(d))
	}
	require.NoError(t, v.CreateFile("root", "readme", 100, "user1", nil))
	require.NoError(t, v.WriteFile("root", "readme", "user1", []byte("hello")))
	require.NoError(t, v.CreateFile("documents", "gone", 700, "user2", nil))
	require.NoError(t, v.CreateFile("documents", "report", 1300, "user2", []string{"user1", "guest"}))
	require.NoError(t, v.WriteFile("documents", "report", "user2", rng.Bytes(1300)))
	require.NoError(t, v.CreateFile("documents", "blank", 0, "admin", nil))
	require.NoError(t, v.DeleteFile("documents", "gone", "admin"))
	return v
}

// assertEquivalent checks that b answers every read-only query like a.
func assertEquivalent(t *testing.T, a, b *Volume) {
	t.Helper()
	assert.Equal(t, a.Info(), b.Info())
	assert.Equal(t, a.ListUsers(), b.ListUsers())
	assert.Equal(t, a.Structure(), b.Structure())

	for _, dir := range a.ListDirectories() {
		want, err := a.ListFiles(dir)
		require.NoError(t, err)
		got, err := b.ListFiles(dir)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		for _, f := range want {
			wantData, err := a.ReadFile(dir, f.Name, "admin")
			require.NoError(t, err)
			gotData, err := b.ReadFile(dir, f.Name, "admin")
			require.NoError(t, err)
			assert.Equal(t, wantData, gotData, "%s/%s", dir, f.Name)
		}
	}
	require.NoError(t, b.Check())
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()

	for _, c := range []snapshot.Compression{snapshot.None, snapshot.LZ4, snapshot.Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			v := populate(t, WithCompression(c))
			path := filepath.Join(t.TempDir(), "filesystem_state.bin")
			require.NoError(t, v.Save(ctx, path))

			loaded, err := Load(ctx, path)
			require.NoError(t, err)
			assertEquivalent(t, v, loaded)

			// Permissions survive.
			_, err = loaded.ReadFile("documents", "report", "guest")
			require.NoError(t, err)
			_, err = loaded.ReadFile("root", "readme", "user2")
			require.ErrorIs(t, err, ErrAccessDenied)
			require.ErrorIs(t, loaded.WriteFile("documents", "report", "user1", nil), ErrAccessDenied)
		})
	}
}

func TestLoad_KeepsHighWater(t *testing.T) {
	ctx := context.Background()
	v := populate(t)
	path := filepath.Join(t.TempDir(), "state.bin")
	require.NoError(t, v.Save(ctx, path))

	loaded, err := Load(ctx, path)
	require.NoError(t, err)

	require.NoError(t, v.CreateFile("root", "next", 10, "admin", nil))
	require.NoError(t, loaded.CreateFile("root", "next", 10, "admin", nil))

	want, err := v.DescribeFile("root", "next")
	require.NoError(t, err)
	got, err := loaded.DescribeFile("root", "next")
	require.NoError(t, err)
	assert.Equal(t, want.StartBlock, got.StartBlock)
}

func TestLoad_Missing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing.bin")

	_, err := Load(ctx, path)
	require.ErrorIs(t, err, ErrNoSnapshot)
	require.ErrorIs(t, err, os.ErrNotExist)

	v, err := Open(ctx, path, WithGeometry(128, 16))
	require.NoError(t, err)
	info := v.Info()
	assert.Equal(t, 16, info.FreeBlocks)
	assert.Equal(t, 128, info.BlockSize)
	assert.Zero(t, info.DirCount)
}

func TestOpen_Existing(t *testing.T) {
	ctx := context.Background()
	v := populate(t)
	path := filepath.Join(t.TempDir(), "state.bin")
	require.NoError(t, v.Save(ctx, path))

	// The stored geometry wins over the option.
	opened, err := Open(ctx, path, WithGeometry(128, 16))
	require.NoError(t, err)
	assertEquivalent(t, v, opened)
}

func TestLoad_Garbage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a snapshot, just text"), 0o644))

	_, err := Load(ctx, path)
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, snapshot.ErrInvalidMagic)

	_, err = Open(ctx, path)
	require.ErrorIs(t, err, ErrPersistence)
}

func writeImage(t *testing.T, img *snapshot.Image) string {
	t.Helper()
	data, err := snapshot.Marshal(img)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "state.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_RejectsInconsistentImage(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(img *snapshot.Image)
	}{
		{"free count too high", func(img *snapshot.Image) { img.Header.FreeBlocks++ }},
		{"free count too low", func(img *snapshot.Image) { img.Header.FreeBlocks-- }},
		{"overlapping runs", func(img *snapshot.Image) {
			img.Directories[1].Files[0].StartBlock = img.Directories[0].Files[0].StartBlock
		}},
		{"run past arena", func(img *snapshot.Image) {
			img.Directories[0].Files[0].StartBlock = img.Header.TotalBlocks - 1
			img.Directories[0].Files[0].Size = 10 * int64(img.Header.BlockSize)
		}},
		{"short arena", func(img *snapshot.Image) { img.Arena = img.Arena[:100] }},
		{"duplicate directory", func(img *snapshot.Image) { img.Directories[2].Name = "root" }},
		{"duplicate file", func(img *snapshot.Image) {
			d := &img.Directories[1]
			d.Files[1].Name = d.Files[0].Name
		}},
		{"duplicate user", func(img *snapshot.Image) { img.Users[2] = "admin" }},
		{"zero block size", func(img *snapshot.Image) { img.Header.BlockSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := populate(t)
			img := v.image()
			tt.mutate(img)

			_, err := Load(context.Background(), writeImage(t, img))
			require.ErrorIs(t, err, ErrPersistence)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestLoad_EnforcesLimits(t *testing.T) {
	ctx := context.Background()
	v := populate(t)
	path := filepath.Join(t.TempDir(), "state.bin")
	require.NoError(t, v.Save(ctx, path))

	limits := DefaultLimits()
	limits.MaxDirectories = 2
	_, err := Load(ctx, path, WithLimits(limits))
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestSave_FailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(nil)
	path := filepath.Join(t.TempDir(), "state.bin")

	v := populate(t, WithFileSystem(faulty))
	require.NoError(t, v.Save(ctx, path))

	require.NoError(t, v.CreateFile("root", "unsaved", 10, "admin", nil))

	faulty.AddRule("state.bin", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	err := v.Save(ctx, path)
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, fs.ErrInjected)

	faulty.ClearRules()
	faulty.AddRule("state.bin", fs.Fault{FailAfterBytes: 16})
	require.ErrorIs(t, v.Save(ctx, path), ErrPersistence)

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	_, err = loaded.DescribeFile("root", "unsaved")
	require.ErrorIs(t, err, ErrNotFound)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are removed")
}

func TestSave_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := populate(t)
	path := filepath.Join(t.TempDir(), "state.bin")
	require.ErrorIs(t, v.Save(ctx, path), context.Canceled)
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheckpointRestore(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewStore(blobstore.NewMemoryStore())

	_, err := Restore(ctx, store, 0)
	require.ErrorIs(t, err, ErrNoSnapshot)

	v := populate(t)
	first, err := v.Checkpoint(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID)

	require.NoError(t, v.CreateFile("root", "later", 10, "admin", nil))
	second, err := v.Checkpoint(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID)

	latest, err := Restore(ctx, store, 0)
	require.NoError(t, err)
	assertEquivalent(t, v, latest)

	old, err := Restore(ctx, store, first.ID)
	require.NoError(t, err)
	_, err = old.DescribeFile("root", "later")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, v.Info().FileCount-1, old.Info().FileCount)

	_, err = Restore(ctx, store, 99)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestCheckpoint_LocalStore(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewStore(blobstore.NewLocalStore(t.TempDir()), checkpoint.WithCompression(snapshot.LZ4))

	v := populate(t)
	_, err := v.Checkpoint(ctx, store)
	require.NoError(t, err)

	restored, err := Restore(ctx, store, 0)
	require.NoError(t, err)
	assertEquivalent(t, v, restored)
}

func TestRestore_CorruptGeneration(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := checkpoint.NewStore(blobs)

	v := populate(t)
	ver, err := v.Checkpoint(ctx, store)
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, ver.Name, []byte("junk")))

	_, err = Restore(ctx, store, 0)
	require.ErrorIs(t, err, ErrPersistence)
}

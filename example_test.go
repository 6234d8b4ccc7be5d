package volfs_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/volfs"
	"github.com/hupe1980/volfs/blobstore"
	"github.com/hupe1980/volfs/checkpoint"
)

func Example() {
	v, err := volfs.New(volfs.WithGeometry(512, 2048))
	if err != nil {
		log.Fatal(err)
	}

	_ = v.CreateDirectory("docs")
	_ = v.CreateFile("docs", "a.txt", 100, "alice", []string{"bob"})
	_ = v.WriteFile("docs", "a.txt", "alice", []byte("hello"))

	data, _ := v.ReadFile("docs", "a.txt", "bob")
	fmt.Printf("%q (%d bytes)\n", data[:5], len(data))

	err = v.WriteFile("docs", "a.txt", "bob", []byte("hi"))
	fmt.Println(errors.Is(err, volfs.ErrAccessDenied))

	info := v.Info()
	fmt.Printf("%d of %d blocks free\n", info.FreeBlocks, info.TotalBlocks)
	// Output:
	// "hello" (100 bytes)
	// true
	// 2047 of 2048 blocks free
}

func ExampleOpen() {
	dir, err := os.MkdirTemp("", "volfs")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	path := filepath.Join(dir, "filesystem_state.bin")

	v, err := volfs.Open(ctx, path) // nothing saved yet: empty volume
	if err != nil {
		log.Fatal(err)
	}
	_ = v.CreateDirectory("root")
	_ = v.CreateFile("root", "notes", 10, "admin", nil)
	if err := v.Save(ctx, path); err != nil {
		log.Fatal(err)
	}

	v, err = volfs.Open(ctx, path)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v.Structure())
	// Output: [{root [notes]}]
}

func ExampleVolume_Checkpoint() {
	ctx := context.Background()
	store := checkpoint.NewStore(blobstore.NewMemoryStore())

	v, _ := volfs.New()
	_ = v.CreateDirectory("docs")
	first, _ := v.Checkpoint(ctx, store)

	_ = v.CreateFile("docs", "later", 1, "admin", nil)
	_, _ = v.Checkpoint(ctx, store)

	old, _ := volfs.Restore(ctx, store, first.ID)
	fmt.Println(first.Name, old.Info().FileCount, v.Info().FileCount)
	// Output: SNAPSHOT-000001.bin 0 1
}

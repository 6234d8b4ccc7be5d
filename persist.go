package volfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/hupe1980/volfs/blobstore"
	"github.com/hupe1980/volfs/checkpoint"
	"github.com/hupe1980/volfs/internal/blockstore"
	"github.com/hupe1980/volfs/internal/catalog"
	"github.com/hupe1980/volfs/persistence"
	"github.com/hupe1980/volfs/snapshot"
)

// Save writes the whole volume to path. The snapshot is written to a
// temporary file and renamed over path, so a failed save leaves the
// previous snapshot intact.
func (v *Volume) Save(ctx context.Context, path string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "save", Name: path, Err: err}
	}

	v.mu.Lock()
	img := v.image()
	v.mu.Unlock()

	err := persistence.SaveToFile(v.opts.fsys, path, func(w io.Writer) error {
		return snapshot.Encode(w, img, snapshot.WithCompression(v.opts.compression))
	})
	if err != nil {
		err = &OpError{Op: "save", Name: path, Err: fmt.Errorf("%w: %w", ErrPersistence, err)}
	}

	v.opts.logger.LogSnapshot(ctx, path, err)
	v.opts.metricsCollector.RecordSnapshot(len(img.Arena), time.Since(start), err)
	return err
}

// Load reads a volume saved with Save. A missing file is reported as
// ErrNoSnapshot; undecodable or inconsistent content as ErrPersistence.
// The returned volume is fully built and checked before Load returns it.
func Load(ctx context.Context, path string, optFns ...Option) (*Volume, error) {
	start := time.Now()
	o := applyOptions(optFns)
	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: "load", Name: path, Err: err}
	}

	var img *snapshot.Image
	err := persistence.LoadFromFile(o.fsys, path, func(r io.Reader) error {
		var err error
		img, err = snapshot.Decode(r)
		return err
	})

	var v *Volume
	switch {
	case errors.Is(err, os.ErrNotExist):
		err = fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	case err != nil:
		err = loadError(err)
	default:
		v, err = fromImage(img, o)
	}
	if err != nil {
		err = &OpError{Op: "load", Name: path, Err: err}
	}

	recordRestore(ctx, o, path, v, img, start, err)
	return v, err
}

// Open loads the volume at path, or creates an empty one when no snapshot
// exists yet.
func Open(ctx context.Context, path string, optFns ...Option) (*Volume, error) {
	v, err := Load(ctx, path, optFns...)
	if errors.Is(err, ErrNoSnapshot) {
		return New(optFns...)
	}
	return v, err
}

// Checkpoint saves the volume as a new generation in store and makes it
// current.
func (v *Volume) Checkpoint(ctx context.Context, store *checkpoint.Store) (checkpoint.Version, error) {
	start := time.Now()

	v.mu.Lock()
	img := v.image()
	v.mu.Unlock()

	ver, err := store.Save(ctx, img)
	if err != nil {
		err = &OpError{Op: "checkpoint", Err: fmt.Errorf("%w: %w", ErrPersistence, err)}
	}

	v.opts.logger.LogSnapshot(ctx, ver.Name, err)
	v.opts.metricsCollector.RecordSnapshot(len(img.Arena), time.Since(start), err)
	return ver, err
}

// Restore loads generation version from store. Zero means the current
// generation. An empty store or a missing generation is ErrNoSnapshot.
func Restore(ctx context.Context, store *checkpoint.Store, version uint64, optFns ...Option) (*Volume, error) {
	start := time.Now()
	o := applyOptions(optFns)

	img, ver, err := store.LoadVersion(ctx, version)
	source := checkpoint.CurrentName
	if version != 0 {
		source = checkpoint.VersionName(version)
	}

	var v *Volume
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		err = fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	case err != nil:
		err = loadError(err)
	default:
		source = ver.Name
		v, err = fromImage(img, o)
	}
	if err != nil {
		err = &OpError{Op: "restore", Name: source, Err: err}
	}

	recordRestore(ctx, o, source, v, img, start, err)
	return v, err
}

func recordRestore(ctx context.Context, o options, source string, v *Volume, img *snapshot.Image, start time.Time, err error) {
	files, size := 0, 0
	if img != nil {
		size = len(img.Arena)
		if v != nil {
			files = img.FileCount()
		}
	}
	o.logger.LogRestore(ctx, source, files, err)
	o.metricsCollector.RecordSnapshot(size, time.Since(start), err)
}

// image returns a value copy of the volume. The caller holds v.mu.
func (v *Volume) image() *snapshot.Image {
	st := v.blocks.State()
	img := &snapshot.Image{
		Header: snapshot.Header{
			BlockSize:   st.BlockSize,
			TotalBlocks: st.TotalBlocks,
			FreeBlocks:  st.FreeBlocks,
			HighWater:   st.HighWater,
		},
		Arena: st.Arena,
		Users: v.ns.Users(),
	}

	for _, d := range v.ns.Directories() {
		sd := snapshot.Directory{Name: d.Name()}
		for _, e := range d.Entries() {
			sd.Files = append(sd.Files, snapshot.File{
				Name:         e.Name,
				Size:         e.Size,
				StartBlock:   e.StartBlock,
				CreatedAt:    e.CreatedAt,
				Owner:        e.Owner,
				AllowedUsers: slices.Clone(e.AllowedUsers),
			})
		}
		img.Directories = append(img.Directories, sd)
	}
	return img
}

// fromImage builds a new volume from img. Table bounds from o apply; the
// image's arena is adopted. Every error is a persistence error.
func fromImage(img *snapshot.Image, o options) (*Volume, error) {
	ns := catalog.New(o.limits)
	for _, u := range img.Users {
		if err := ns.CreateUser(u); err != nil {
			return nil, loadError(err)
		}
	}

	var runs []blockstore.Run
	for _, sd := range img.Directories {
		d, err := ns.CreateDirectory(sd.Name)
		if err != nil {
			return nil, loadError(err)
		}
		for _, f := range sd.Files {
			if err := ns.ValidateAllowed(f.AllowedUsers); err != nil {
				return nil, loadError(err)
			}
			e := &catalog.Entry{
				Name:         f.Name,
				StartBlock:   f.StartBlock,
				Size:         f.Size,
				CreatedAt:    f.CreatedAt,
				Owner:        f.Owner,
				AllowedUsers: slices.Clone(f.AllowedUsers),
			}
			if err := d.Add(e); err != nil {
				return nil, loadError(err)
			}
			runs = append(runs, blockstore.Run{Start: f.StartBlock, Size: f.Size})
		}
	}

	blocks, err := blockstore.Restore(blockstore.State{
		BlockSize:   img.Header.BlockSize,
		TotalBlocks: img.Header.TotalBlocks,
		FreeBlocks:  img.Header.FreeBlocks,
		HighWater:   img.Header.HighWater,
		Arena:       img.Arena,
	}, runs, blockstore.WithPolicy(o.policy))
	if err != nil {
		return nil, loadError(err)
	}

	return &Volume{opts: o, blocks: blocks, ns: ns}, nil
}

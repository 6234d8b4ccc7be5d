package volfs

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/volfs/acl"
	"github.com/hupe1980/volfs/internal/blockstore"
	"github.com/hupe1980/volfs/internal/catalog"
)

// Volume is a single emulated disk: a block arena, a flat table of
// directories holding files, and a user table.
//
// Methods are serialized by an internal mutex, so Save and Checkpoint always
// see a consistent image. Identities passed as owner or actor are not checked
// against the user table.
type Volume struct {
	mu     sync.Mutex
	opts   options
	blocks *blockstore.Store
	ns     *catalog.Namespace
}

// New creates an empty volume: no users, no directories, every block free.
func New(optFns ...Option) (*Volume, error) {
	o := applyOptions(optFns)

	blocks, err := blockstore.New(o.blockSize, o.totalBlocks, blockstore.WithPolicy(o.policy))
	if err != nil {
		return nil, opError("new", "", "", err)
	}
	return &Volume{
		opts:   o,
		blocks: blocks,
		ns:     catalog.New(o.limits),
	}, nil
}

// CreateUser registers a user name.
func (v *Volume) CreateUser(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return opError("create user", "", name, v.ns.CreateUser(name))
}

// CreateDirectory adds an empty directory.
func (v *Volume) CreateDirectory(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.ns.CreateDirectory(name)
	return opError("create directory", name, "", err)
}

// CreateFile reserves a block run for size bytes and appends a new entry to
// dir. It fails with ErrNotFound if dir does not exist, ErrDuplicateName if
// the name is taken, ErrCapacityExceeded if dir is full, and
// ErrInsufficientSpace if no run can hold size bytes. A failed call changes
// nothing.
func (v *Volume) CreateFile(dir, name string, size int64, owner string, allowed []string) error {
	start := time.Now()

	v.mu.Lock()
	first, err := v.createFile(dir, name, size, owner, allowed)
	v.mu.Unlock()

	err = opError("create", dir, name, err)
	v.opts.logger.LogCreate(context.Background(), dir, name, size, first, err)
	v.opts.metricsCollector.RecordCreate(time.Since(start), err)
	return err
}

func (v *Volume) createFile(dir, name string, size int64, owner string, allowed []string) (int, error) {
	d, err := v.ns.Directory(dir)
	if err != nil {
		return 0, err
	}
	if err := d.CheckAdd(name); err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalidArgument, size)
	}
	if err := catalog.ValidateUserName(owner); err != nil {
		return 0, err
	}
	if err := v.ns.ValidateAllowed(allowed); err != nil {
		return 0, err
	}

	first, err := v.blocks.Allocate(size)
	if err != nil {
		return 0, err
	}

	e := &catalog.Entry{
		Name:       name,
		StartBlock: first,
		Size:       size,
		CreatedAt:  v.opts.now().UTC(),
		Owner:      owner,
	}
	if len(allowed) > 0 {
		e.AllowedUsers = slices.Clone(allowed)
	}
	if err := d.Add(e); err != nil {
		if ferr := v.blocks.Free(first, size); ferr != nil {
			return 0, fmt.Errorf("%w (rollback: %w)", err, ferr)
		}
		return 0, err
	}
	return first, nil
}

// WriteFile overwrites the first len(content) bytes of a file. Bytes past
// len(content) keep their previous value. Only the owner and admin may
// write; content longer than the file fails with ErrContentTooLarge.
func (v *Volume) WriteFile(dir, name, actor string, content []byte) error {
	start := time.Now()

	v.mu.Lock()
	err := v.writeFile(dir, name, actor, content)
	v.mu.Unlock()

	err = opError("write", dir, name, err)
	v.opts.logger.LogWrite(context.Background(), dir, name, actor, len(content), err)
	v.opts.metricsCollector.RecordWrite(len(content), time.Since(start), err)
	return err
}

func (v *Volume) writeFile(dir, name, actor string, content []byte) error {
	e, err := v.lookup(dir, name)
	if err != nil {
		return err
	}
	if err := acl.Check(e.Owner, e.AllowedUsers, actor, acl.Write); err != nil {
		return err
	}
	return v.blocks.Write(e.StartBlock, e.Size, content)
}

// ReadFile returns the whole file: exactly Size bytes, zero where nothing
// was written. The owner, admin and allowed users may read.
func (v *Volume) ReadFile(dir, name, actor string) ([]byte, error) {
	start := time.Now()

	v.mu.Lock()
	data, err := v.readFile(dir, name, actor)
	v.mu.Unlock()

	err = opError("read", dir, name, err)
	v.opts.logger.LogRead(context.Background(), dir, name, actor, len(data), err)
	v.opts.metricsCollector.RecordRead(len(data), time.Since(start), err)
	return data, err
}

func (v *Volume) readFile(dir, name, actor string) ([]byte, error) {
	e, err := v.lookup(dir, name)
	if err != nil {
		return nil, err
	}
	if err := acl.Check(e.Owner, e.AllowedUsers, actor, acl.Read); err != nil {
		return nil, err
	}
	return v.blocks.Read(e.StartBlock, e.Size)
}

// DeleteFile zeroes a file, returns its blocks and removes its entry. The
// remaining files of the directory keep their order. Only the owner and
// admin may delete.
func (v *Volume) DeleteFile(dir, name, actor string) error {
	start := time.Now()

	v.mu.Lock()
	freed, err := v.deleteFile(dir, name, actor)
	v.mu.Unlock()

	err = opError("delete", dir, name, err)
	v.opts.logger.LogDelete(context.Background(), dir, name, actor, freed, err)
	v.opts.metricsCollector.RecordDelete(time.Since(start), err)
	return err
}

func (v *Volume) deleteFile(dir, name, actor string) (int, error) {
	d, err := v.ns.Directory(dir)
	if err != nil {
		return 0, err
	}
	e, err := d.Lookup(name)
	if err != nil {
		return 0, err
	}
	if err := acl.Check(e.Owner, e.AllowedUsers, actor, acl.Delete); err != nil {
		return 0, err
	}
	if err := v.blocks.Free(e.StartBlock, e.Size); err != nil {
		return 0, err
	}
	if _, err := d.Remove(name); err != nil {
		return 0, err
	}
	return v.blocks.BlocksFor(e.Size), nil
}

func (v *Volume) lookup(dir, name string) (*catalog.Entry, error) {
	d, err := v.ns.Directory(dir)
	if err != nil {
		return nil, err
	}
	return d.Lookup(name)
}

// DescribeFile returns the metadata of a file. No access check is applied.
func (v *Volume) DescribeFile(dir, name string) (FileInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.lookup(dir, name)
	if err != nil {
		return FileInfo{}, opError("describe", dir, name, err)
	}
	return fileInfo(dir, e, v.blocks.BlocksFor(e.Size)), nil
}

// ListFiles returns the metadata of every file in dir, in creation order.
func (v *Volume) ListFiles(dir string) ([]FileInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	d, err := v.ns.Directory(dir)
	if err != nil {
		return nil, opError("list", dir, "", err)
	}
	entries := d.Entries()
	out := make([]FileInfo, len(entries))
	for i, e := range entries {
		out[i] = fileInfo(dir, e, v.blocks.BlocksFor(e.Size))
	}
	return out, nil
}

// Info returns block usage and table sizes.
func (v *Volume) Info() VolumeInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	bs := int64(v.blocks.BlockSize())
	return VolumeInfo{
		Allocation:  v.blocks.Policy().String(),
		BlockSize:   v.blocks.BlockSize(),
		TotalBlocks: v.blocks.TotalBlocks(),
		FreeBlocks:  v.blocks.FreeBlocks(),
		HighWater:   v.blocks.HighWater(),
		DirCount:    len(v.ns.Directories()),
		UserCount:   len(v.ns.Users()),
		FileCount:   v.ns.FileCount(),
		TotalBytes:  bs * int64(v.blocks.TotalBlocks()),
		FreeBytes:   bs * int64(v.blocks.FreeBlocks()),
	}
}

// ListDirectories returns the directory names in creation order.
func (v *Volume) ListDirectories() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	dirs := v.ns.Directories()
	names := make([]string, len(dirs))
	for i, d := range dirs {
		names[i] = d.Name()
	}
	return names
}

// ListUsers returns the registered users in creation order.
func (v *Volume) ListUsers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ns.Users()
}

// Structure returns every directory with its file names.
func (v *Volume) Structure() []DirectoryInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	dirs := v.ns.Directories()
	out := make([]DirectoryInfo, len(dirs))
	for i, d := range dirs {
		out[i] = DirectoryInfo{Name: d.Name(), Files: d.Names()}
	}
	return out
}

// Check verifies the block accounting against the file table: every file
// run lies inside the arena, no two runs overlap, and the free count equals
// the blocks no file holds. Violations are reported as ErrCorrupt.
func (v *Volume) Check() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return opError("check", "", "", v.check())
}

func (v *Volume) check() error {
	return v.blocks.Verify(v.runs())
}

func (v *Volume) runs() []blockstore.Run {
	runs := make([]blockstore.Run, 0, v.ns.FileCount())
	for _, d := range v.ns.Directories() {
		for _, e := range d.Entries() {
			runs = append(runs, blockstore.Run{Start: e.StartBlock, Size: e.Size})
		}
	}
	return runs
}

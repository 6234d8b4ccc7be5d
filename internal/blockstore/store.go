package blockstore

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// MaxArenaSize bounds BlockSize*TotalBlocks.
const MaxArenaSize = 1 << 32

var (
	// ErrNoSpace is returned when a run cannot be allocated.
	ErrNoSpace = errors.New("no space left on volume")

	// ErrInvalidGeometry is returned for a non-positive or oversized block layout.
	ErrInvalidGeometry = errors.New("invalid volume geometry")

	// ErrInvalidRange is returned when a run lies outside the arena or is not allocated.
	ErrInvalidRange = errors.New("invalid block range")

	// ErrTooLarge is returned when a write does not fit the file window.
	ErrTooLarge = errors.New("content exceeds file size")

	// ErrCorrupt is returned when block accounting is inconsistent.
	ErrCorrupt = errors.New("block accounting corrupt")
)

// Policy selects how runs are placed in the arena.
type Policy uint8

const (
	// PolicyBump places runs at the high-water mark.
	PolicyBump Policy = iota
	// PolicyFirstFit places runs at the lowest free gap.
	PolicyFirstFit
)

func (p Policy) String() string {
	switch p {
	case PolicyBump:
		return "bump"
	case PolicyFirstFit:
		return "first-fit"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the allocation policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// Run is a file window: Size bytes starting at block Start.
type Run struct {
	Start int
	Size  int64
}

// State is the value form of a Store used by snapshots.
type State struct {
	BlockSize   int
	TotalBlocks int
	FreeBlocks  int
	HighWater   int
	Arena       []byte
}

// Store is a block-addressed byte arena with a contiguous-run allocator.
type Store struct {
	blockSize   int
	totalBlocks int
	freeBlocks  int
	highWater   int
	arena       []byte
	used        *roaring.Bitmap
	policy      Policy
}

// New creates an empty store with every block free.
func New(blockSize, totalBlocks int, optFns ...Option) (*Store, error) {
	if err := validateGeometry(blockSize, totalBlocks); err != nil {
		return nil, err
	}

	s := &Store{
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
		freeBlocks:  totalBlocks,
		arena:       make([]byte, blockSize*totalBlocks),
		used:        roaring.New(),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s, nil
}

// Restore rebuilds a store from decoded state and the runs of every live file.
// The arena slice is adopted, not copied.
func Restore(st State, runs []Run, optFns ...Option) (*Store, error) {
	if err := validateGeometry(st.BlockSize, st.TotalBlocks); err != nil {
		return nil, err
	}
	if len(st.Arena) != st.BlockSize*st.TotalBlocks {
		return nil, fmt.Errorf("%w: arena is %d bytes, want %d", ErrCorrupt, len(st.Arena), st.BlockSize*st.TotalBlocks)
	}
	if st.FreeBlocks < 0 || st.FreeBlocks > st.TotalBlocks {
		return nil, fmt.Errorf("%w: free blocks %d outside [0, %d]", ErrCorrupt, st.FreeBlocks, st.TotalBlocks)
	}
	if st.HighWater < 0 || st.HighWater > st.TotalBlocks {
		return nil, fmt.Errorf("%w: high-water %d outside [0, %d]", ErrCorrupt, st.HighWater, st.TotalBlocks)
	}

	s := &Store{
		blockSize:   st.BlockSize,
		totalBlocks: st.TotalBlocks,
		freeBlocks:  st.FreeBlocks,
		highWater:   st.HighWater,
		arena:       st.Arena,
		used:        roaring.New(),
	}
	for _, fn := range optFns {
		fn(s)
	}

	for _, r := range runs {
		n, err := s.checkRun(r.Start, r.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n == 0 {
			continue
		}
		run := roaring.New()
		run.AddRange(uint64(r.Start), uint64(r.Start+n))
		if s.used.Intersects(run) {
			return nil, fmt.Errorf("%w: run at block %d overlaps another file", ErrCorrupt, r.Start)
		}
		s.used.Or(run)
	}

	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

func validateGeometry(blockSize, totalBlocks int) error {
	if blockSize <= 0 || totalBlocks <= 0 {
		return fmt.Errorf("%w: block size %d, total blocks %d", ErrInvalidGeometry, blockSize, totalBlocks)
	}
	if totalBlocks > math.MaxUint32 || int64(blockSize)*int64(totalBlocks) > MaxArenaSize {
		return fmt.Errorf("%w: arena of %d x %d bytes exceeds %d", ErrInvalidGeometry, totalBlocks, blockSize, int64(MaxArenaSize))
	}
	return nil
}

// BlockSize returns the block size in bytes.
func (s *Store) BlockSize() int { return s.blockSize }

// TotalBlocks returns the number of blocks in the arena.
func (s *Store) TotalBlocks() int { return s.totalBlocks }

// FreeBlocks returns the number of unallocated blocks.
func (s *Store) FreeBlocks() int { return s.freeBlocks }

// HighWater returns the first block past every run ever placed.
func (s *Store) HighWater() int { return s.highWater }

// Policy returns the allocation policy.
func (s *Store) Policy() Policy { return s.policy }

// BlocksFor returns the number of blocks needed to hold size bytes.
func (s *Store) BlocksFor(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + int64(s.blockSize) - 1) / int64(s.blockSize))
}

// Allocate reserves a contiguous run large enough for size bytes and returns
// its first block. The store is unchanged on error.
func (s *Store) Allocate(size int64) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalidRange, size)
	}
	if size > int64(len(s.arena)) {
		return 0, fmt.Errorf("%w: %d bytes exceeds volume size %d", ErrNoSpace, size, len(s.arena))
	}

	n := s.BlocksFor(size)
	if n > s.freeBlocks {
		return 0, fmt.Errorf("%w: need %d blocks, %d free", ErrNoSpace, n, s.freeBlocks)
	}

	var start int
	switch s.policy {
	case PolicyFirstFit:
		var ok bool
		if start, ok = s.firstFit(n); !ok {
			return 0, fmt.Errorf("%w: no contiguous run of %d blocks", ErrNoSpace, n)
		}
	default:
		if s.highWater+n > s.totalBlocks {
			return 0, fmt.Errorf("%w: need %d blocks past high-water mark %d of %d", ErrNoSpace, n, s.highWater, s.totalBlocks)
		}
		start = s.highWater
	}

	if n > 0 {
		s.used.AddRange(uint64(start), uint64(start+n))
	}
	s.freeBlocks -= n
	if start+n > s.highWater {
		s.highWater = start + n
	}
	return start, nil
}

// firstFit finds the lowest gap of at least n clear blocks.
func (s *Store) firstFit(n int) (int, bool) {
	if n == 0 {
		return 0, true
	}
	next := 0
	it := s.used.Iterator()
	for it.HasNext() {
		b := int(it.Next())
		if b-next >= n {
			return next, true
		}
		next = b + 1
	}
	if s.totalBlocks-next >= n {
		return next, true
	}
	return 0, false
}

// Free zeroes the size bytes at start and returns the run to the free count.
func (s *Store) Free(start int, size int64) error {
	n, err := s.checkRun(start, size)
	if err != nil {
		return err
	}
	if n > 0 {
		run := roaring.New()
		run.AddRange(uint64(start), uint64(start+n))
		if s.used.AndCardinality(run) != uint64(n) {
			return fmt.Errorf("%w: blocks [%d, %d) are not allocated", ErrInvalidRange, start, start+n)
		}
		s.used.AndNot(run)
	}

	off := start * s.blockSize
	clear(s.arena[off : off+int(size)])
	s.freeBlocks += n
	return nil
}

// Read returns a copy of the size bytes at start.
func (s *Store) Read(start int, size int64) ([]byte, error) {
	if _, err := s.checkRun(start, size); err != nil {
		return nil, err
	}
	off := start * s.blockSize
	out := make([]byte, size)
	copy(out, s.arena[off:off+int(size)])
	return out, nil
}

// Write copies p to the beginning of the file window at start. Bytes past
// len(p) are left as they are.
func (s *Store) Write(start int, size int64, p []byte) error {
	if _, err := s.checkRun(start, size); err != nil {
		return err
	}
	if int64(len(p)) > size {
		return fmt.Errorf("%w: %d bytes into a %d byte file", ErrTooLarge, len(p), size)
	}
	off := start * s.blockSize
	copy(s.arena[off:], p)
	return nil
}

// checkRun validates a window and returns its length in blocks.
func (s *Store) checkRun(start int, size int64) (int, error) {
	if start < 0 || size < 0 {
		return 0, fmt.Errorf("%w: start %d, size %d", ErrInvalidRange, start, size)
	}
	n := s.BlocksFor(size)
	if start+n > s.totalBlocks || int64(start)*int64(s.blockSize)+size > int64(len(s.arena)) {
		return 0, fmt.Errorf("%w: %d bytes at block %d exceed %d blocks", ErrInvalidRange, size, start, s.totalBlocks)
	}
	return n, nil
}

// Check verifies that the free count matches the occupancy bitmap.
func (s *Store) Check() error {
	if s.freeBlocks < 0 || s.freeBlocks > s.totalBlocks {
		return fmt.Errorf("%w: free blocks %d outside [0, %d]", ErrCorrupt, s.freeBlocks, s.totalBlocks)
	}
	usedBlocks := int(s.used.GetCardinality())
	if s.freeBlocks != s.totalBlocks-usedBlocks {
		return fmt.Errorf("%w: %d free blocks recorded, %d allocated of %d", ErrCorrupt, s.freeBlocks, usedBlocks, s.totalBlocks)
	}
	if usedBlocks > 0 && int(s.used.Maximum()) >= s.highWater {
		return fmt.Errorf("%w: block %d allocated past high-water mark %d", ErrCorrupt, s.used.Maximum(), s.highWater)
	}
	return nil
}

// Verify checks that runs are inside the arena, pairwise disjoint, and
// together cover exactly the allocated blocks. It also runs Check.
func (s *Store) Verify(runs []Run) error {
	if err := s.Check(); err != nil {
		return err
	}
	seen := roaring.New()
	for _, r := range runs {
		n, err := s.checkRun(r.Start, r.Size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n == 0 {
			continue
		}
		run := roaring.New()
		run.AddRange(uint64(r.Start), uint64(r.Start+n))
		if seen.Intersects(run) {
			return fmt.Errorf("%w: run at block %d overlaps another file", ErrCorrupt, r.Start)
		}
		seen.Or(run)
	}
	if !seen.Equals(s.used) {
		return fmt.Errorf("%w: %d blocks held by files, %d marked allocated", ErrCorrupt, seen.GetCardinality(), s.used.GetCardinality())
	}
	return nil
}

// State returns the value form of the store. The arena is copied.
func (s *Store) State() State {
	arena := make([]byte, len(s.arena))
	copy(arena, s.arena)
	return State{
		BlockSize:   s.blockSize,
		TotalBlocks: s.totalBlocks,
		FreeBlocks:  s.freeBlocks,
		HighWater:   s.highWater,
		Arena:       arena,
	}
}

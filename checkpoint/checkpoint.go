package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/volfs/blobstore"
	"github.com/hupe1980/volfs/internal/resource"
	"github.com/hupe1980/volfs/snapshot"
)

const (
	// CurrentName is the pointer blob naming the latest generation.
	CurrentName = "CURRENT"

	snapshotPrefix = "SNAPSHOT-"
	snapshotSuffix = ".bin"
)

var (
	// ErrNoCheckpoint is returned when the store holds no generation.
	ErrNoCheckpoint = errors.New("no checkpoint")

	// ErrCurrentVersion is returned when deleting the generation CURRENT
	// points at.
	ErrCurrentVersion = errors.New("version is current")

	// ErrInvalidPointer is returned when CURRENT names no valid generation.
	ErrInvalidPointer = errors.New("invalid CURRENT pointer")
)

// Version identifies one stored generation.
type Version struct {
	ID   uint64
	Name string
	Size int64
}

// VersionName returns the blob name of generation id.
func VersionName(id uint64) string {
	return fmt.Sprintf("%s%06d%s", snapshotPrefix, id, snapshotSuffix)
}

// ParseVersionName returns the generation id of a snapshot blob name.
func ParseVersionName(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, snapshotPrefix)
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, snapshotSuffix)
	if !ok || digits == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Limits bounds the resources a Store uses. Zero values mean no bound,
// except MaxConcurrentDeletes where zero means one.
type Limits struct {
	// MemoryLimitBytes caps encoded snapshot bytes held in flight.
	MemoryLimitBytes int64

	// MaxConcurrentDeletes caps parallel deletes during Prune.
	MaxConcurrentDeletes int64
}

// Store manages snapshot generations in a BlobStore.
type Store struct {
	blobs       blobstore.BlobStore
	compression snapshot.Compression
	rc          *resource.Controller

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithCompression selects the payload compression of new generations.
func WithCompression(c snapshot.Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithLimits bounds memory and delete concurrency.
func WithLimits(l Limits) Option {
	return func(s *Store) {
		s.rc = resource.NewController(resource.Config{
			MemoryLimitBytes:     l.MemoryLimitBytes,
			MaxBackgroundWorkers: l.MaxConcurrentDeletes,
		})
	}
}

// NewStore creates a checkpoint store over blobs.
func NewStore(blobs blobstore.BlobStore, optFns ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		compression: snapshot.Zstd,
	}
	for _, fn := range optFns {
		fn(s)
	}
	if s.rc == nil {
		s.rc = resource.NewController(resource.Config{MaxBackgroundWorkers: 4})
	}
	return s
}

// Blobs returns the underlying blob store.
func (s *Store) Blobs() blobstore.BlobStore { return s.blobs }

// Save writes img as a new generation and makes it current.
func (s *Store) Save(ctx context.Context, img *snapshot.Image) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listIDs(ctx)
	if err != nil {
		return Version{}, err
	}
	var next uint64 = 1
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}
	// CURRENT may point past the listing on eventually consistent stores.
	if cur, err := s.currentID(ctx); err == nil && cur >= next {
		next = cur + 1
	}

	reserve := int64(len(img.Arena)) + 64<<10
	if err := s.rc.AcquireMemory(reserve); err != nil {
		return Version{}, fmt.Errorf("checkpoint: reserve %d bytes: %w", reserve, err)
	}
	defer s.rc.ReleaseMemory(reserve)

	data, err := snapshot.Marshal(img, snapshot.WithCompression(s.compression))
	if err != nil {
		return Version{}, err
	}

	v := Version{ID: next, Name: VersionName(next), Size: int64(len(data))}
	if err := s.blobs.Put(ctx, v.Name, data); err != nil {
		return Version{}, fmt.Errorf("checkpoint: write %s: %w", v.Name, err)
	}
	if err := s.blobs.Put(ctx, CurrentName, []byte(v.Name)); err != nil {
		// The orphaned generation is harmless; the next Save numbers past it.
		return Version{}, fmt.Errorf("checkpoint: commit %s: %w", v.Name, err)
	}
	return v, nil
}

// Load returns the current generation.
func (s *Store) Load(ctx context.Context) (*snapshot.Image, Version, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion returns generation id. Zero means the current one.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*snapshot.Image, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 {
		cur, err := s.currentID(ctx)
		if err != nil {
			return nil, Version{}, err
		}
		id = cur
	}

	name := VersionName(id)
	data, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, Version{}, fmt.Errorf("checkpoint: version %d: %w", id, err)
		}
		return nil, Version{}, fmt.Errorf("checkpoint: read %s: %w", name, err)
	}

	if err := s.rc.AcquireMemory(int64(len(data))); err != nil {
		return nil, Version{}, fmt.Errorf("checkpoint: decode %s: %w", name, err)
	}
	defer s.rc.ReleaseMemory(int64(len(data)))

	img, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, Version{}, fmt.Errorf("checkpoint: decode %s: %w", name, err)
	}
	return img, Version{ID: id, Name: name, Size: int64(len(data))}, nil
}

// Current returns the id CURRENT points at.
func (s *Store) Current(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID(ctx)
}

func (s *Store) currentID(ctx context.Context) (uint64, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return 0, ErrNoCheckpoint
		}
		return 0, fmt.Errorf("checkpoint: read %s: %w", CurrentName, err)
	}
	id, ok := ParseVersionName(strings.TrimSpace(string(data)))
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPointer, data)
	}
	return id, nil
}

// ListVersions returns the stored generations, oldest first.
func (s *Store) ListVersions(ctx context.Context) ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listIDs(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]Version, 0, len(ids))
	for _, id := range ids {
		v := Version{ID: id, Name: VersionName(id)}
		b, err := s.blobs.Open(ctx, v.Name)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue // deleted since List
			}
			return nil, err
		}
		v.Size = b.Size()
		_ = b.Close()
		versions = append(versions, v)
	}
	return versions, nil
}

// listIDs returns the generation ids present in the store, ascending.
func (s *Store) listIDs(ctx context.Context) ([]uint64, error) {
	names, err := s.blobs.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		if id, ok := ParseVersionName(name); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// DeleteVersion removes generation id. The current generation cannot be
// deleted.
func (s *Store) DeleteVersion(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.currentID(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return err
	}
	if id == cur {
		return fmt.Errorf("checkpoint: delete version %d: %w", id, ErrCurrentVersion)
	}
	return s.blobs.Delete(ctx, VersionName(id))
}

// Prune deletes all but the newest keep generations and returns how many
// it removed. The current generation is always kept.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ids, err := s.listIDs(ctx)
	if err != nil {
		return 0, err
	}
	cur, err := s.currentID(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return 0, err
	}
	if len(ids) <= keep {
		return 0, nil
	}

	var victims []uint64
	for _, id := range ids[:len(ids)-keep] {
		if id != cur {
			victims = append(victims, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range victims {
		if err := s.rc.AcquireBackground(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer s.rc.ReleaseBackground()
			if err := s.blobs.Delete(gctx, VersionName(id)); err != nil {
				return fmt.Errorf("checkpoint: delete %s: %w", VersionName(id), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(victims), nil
}

package volfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/volfs/acl"
	"github.com/hupe1980/volfs/checkpoint"
	"github.com/hupe1980/volfs/internal/blockstore"
	"github.com/hupe1980/volfs/internal/catalog"
	"github.com/hupe1980/volfs/snapshot"
)

var (
	// ErrNotFound is returned when a directory or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a create collides with an existing name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrCapacityExceeded is returned when the directory, user, file or
	// allowed-user table is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInsufficientSpace is returned when no block run can hold a new file.
	ErrInsufficientSpace = errors.New("insufficient space")

	// ErrAccessDenied is returned when the acting identity lacks permission.
	ErrAccessDenied = acl.ErrAccessDenied

	// ErrContentTooLarge is returned when a write exceeds the file size.
	ErrContentTooLarge = errors.New("content too large")

	// ErrPersistence is returned when a snapshot cannot be written or read.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidArgument is returned for bad names, sizes and geometry.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorrupt is returned when volume state violates its accounting.
	ErrCorrupt = errors.New("volume corrupt")

	// ErrNoSnapshot is returned by Load and Restore when nothing was saved yet.
	ErrNoSnapshot = errors.New("no snapshot")
)

// OpError records a failed volume operation and the file it addressed.
type OpError struct {
	Op        string
	Directory string
	Name      string
	Err       error
}

func (e *OpError) Error() string {
	switch {
	case e.Directory == "" && e.Name == "":
		return e.Op + ": " + e.Err.Error()
	case e.Name == "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Directory, e.Err)
	case e.Directory == "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
	default:
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Directory, e.Name, e.Err)
	}
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op, dir, name string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Directory: dir, Name: name, Err: translateError(err)}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, catalog.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicateName, err)
	case errors.Is(err, catalog.ErrCapacity):
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	case errors.Is(err, catalog.ErrInvalidName):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	switch {
	case errors.Is(err, blockstore.ErrNoSpace):
		return fmt.Errorf("%w: %w", ErrInsufficientSpace, err)
	case errors.Is(err, blockstore.ErrTooLarge):
		return fmt.Errorf("%w: %w", ErrContentTooLarge, err)
	case errors.Is(err, blockstore.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, blockstore.ErrInvalidRange), errors.Is(err, blockstore.ErrInvalidGeometry):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	}

	switch {
	case errors.Is(err, snapshot.ErrInvalidMagic),
		errors.Is(err, snapshot.ErrUnsupportedVersion),
		errors.Is(err, snapshot.ErrChecksumMismatch),
		errors.Is(err, snapshot.ErrTruncated),
		errors.Is(err, snapshot.ErrMalformed),
		errors.Is(err, checkpoint.ErrInvalidPointer):
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return err
}

// loadError translates an error raised while rebuilding a volume from a
// snapshot. Every such failure is a persistence error.
func loadError(err error) error {
	err = translateError(err)
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrNoSnapshot) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrInvalidArgument) {
		err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

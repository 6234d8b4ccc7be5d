// Package catalog holds the namespace of a volume: the directory table, the
// file entries of each directory, and the user table.
//
// Every table is an ordered map: a slice keeps insertion order and a
// map[string]int indexes it by name. Capacity bounds are checked on insert;
// a zero bound means unbounded.
//
// A Namespace is not safe for concurrent use.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Name length limits, in bytes.
const (
	MaxDirectoryNameLength = 49
	MaxUserNameLength      = 49
	MaxFileNameLength      = 99
)

var (
	// ErrDuplicate is returned when a name is already taken.
	ErrDuplicate = errors.New("name already exists")

	// ErrCapacity is returned when a table is full.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrNotFound is returned when a name is not present.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for empty or over-long names.
	ErrInvalidName = errors.New("invalid name")
)

// Limits bounds the size of each table. Zero means unbounded.
type Limits struct {
	MaxDirectories       int
	MaxUsers             int
	MaxFilesPerDirectory int
	MaxAllowedUsers      int
}

// DefaultLimits returns the stock table sizes.
func DefaultLimits() Limits {
	return Limits{
		MaxDirectories:       10,
		MaxUsers:             10,
		MaxFilesPerDirectory: 100,
		MaxAllowedUsers:      10,
	}
}

func full(limit, n int) bool { return limit > 0 && n >= limit }

// Entry is the metadata of one file. The block window is
// [StartBlock, StartBlock+ceil(Size/blockSize)).
type Entry struct {
	Name         string
	StartBlock   int
	Size         int64
	CreatedAt    time.Time
	Owner        string
	AllowedUsers []string
}

// Directory is a named, ordered list of file entries.
type Directory struct {
	name     string
	maxFiles int
	files    []*Entry
	index    map[string]int
}

func newDirectory(name string, maxFiles int) *Directory {
	return &Directory{
		name:     name,
		maxFiles: maxFiles,
		index:    make(map[string]int),
	}
}

// Name returns the directory name.
func (d *Directory) Name() string { return d.name }

// Len returns the number of files.
func (d *Directory) Len() int { return len(d.files) }

// CheckAdd reports the error Add would return for a file called name.
func (d *Directory) CheckAdd(name string) error {
	if err := ValidateFileName(name); err != nil {
		return err
	}
	if _, ok := d.index[name]; ok {
		return fmt.Errorf("%w: file %q in directory %q", ErrDuplicate, name, d.name)
	}
	if full(d.maxFiles, len(d.files)) {
		return fmt.Errorf("%w: directory %q holds %d files", ErrCapacity, d.name, d.maxFiles)
	}
	return nil
}

// Add appends e. The directory is unchanged on error.
func (d *Directory) Add(e *Entry) error {
	if err := d.CheckAdd(e.Name); err != nil {
		return err
	}
	d.index[e.Name] = len(d.files)
	d.files = append(d.files, e)
	return nil
}

// Lookup returns the entry named name.
func (d *Directory) Lookup(name string) (*Entry, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: file %q in directory %q", ErrNotFound, name, d.name)
	}
	return d.files[i], nil
}

// Remove deletes the entry named name and returns it. The remaining entries
// keep their relative order.
func (d *Directory) Remove(name string) (*Entry, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: file %q in directory %q", ErrNotFound, name, d.name)
	}
	e := d.files[i]
	d.files = slices.Delete(d.files, i, i+1)
	delete(d.index, name)
	for j := i; j < len(d.files); j++ {
		d.index[d.files[j].Name] = j
	}
	return e, nil
}

// Entries returns the entries in creation order. The slice is a copy; the
// entries are shared.
func (d *Directory) Entries() []*Entry {
	return slices.Clone(d.files)
}

// Names returns the file names in creation order.
func (d *Directory) Names() []string {
	names := make([]string, len(d.files))
	for i, e := range d.files {
		names[i] = e.Name
	}
	return names
}

// Namespace is the directory table and user table of a volume.
type Namespace struct {
	limits Limits

	dirs     []*Directory
	dirIndex map[string]int

	users     []string
	userIndex map[string]int
}

// New creates an empty namespace.
func New(limits Limits) *Namespace {
	return &Namespace{
		limits:    limits,
		dirIndex:  make(map[string]int),
		userIndex: make(map[string]int),
	}
}

// CreateDirectory adds an empty directory.
func (n *Namespace) CreateDirectory(name string) (*Directory, error) {
	if err := validate("directory", name, MaxDirectoryNameLength); err != nil {
		return nil, err
	}
	if _, ok := n.dirIndex[name]; ok {
		return nil, fmt.Errorf("%w: directory %q", ErrDuplicate, name)
	}
	if full(n.limits.MaxDirectories, len(n.dirs)) {
		return nil, fmt.Errorf("%w: at most %d directories", ErrCapacity, n.limits.MaxDirectories)
	}
	d := newDirectory(name, n.limits.MaxFilesPerDirectory)
	n.dirIndex[name] = len(n.dirs)
	n.dirs = append(n.dirs, d)
	return d, nil
}

// Directory returns the directory named name.
func (n *Namespace) Directory(name string) (*Directory, error) {
	i, ok := n.dirIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w: directory %q", ErrNotFound, name)
	}
	return n.dirs[i], nil
}

// Directories returns the directories in creation order.
func (n *Namespace) Directories() []*Directory {
	return slices.Clone(n.dirs)
}

// FileCount returns the number of files across all directories.
func (n *Namespace) FileCount() int {
	total := 0
	for _, d := range n.dirs {
		total += d.Len()
	}
	return total
}

// CreateUser registers a user name.
func (n *Namespace) CreateUser(name string) error {
	if err := ValidateUserName(name); err != nil {
		return err
	}
	if _, ok := n.userIndex[name]; ok {
		return fmt.Errorf("%w: user %q", ErrDuplicate, name)
	}
	if full(n.limits.MaxUsers, len(n.users)) {
		return fmt.Errorf("%w: at most %d users", ErrCapacity, n.limits.MaxUsers)
	}
	n.userIndex[name] = len(n.users)
	n.users = append(n.users, name)
	return nil
}

// Users returns the registered user names in creation order.
func (n *Namespace) Users() []string {
	return slices.Clone(n.users)
}

// ValidateAllowed checks an allowed-reader list against the name rules and
// the MaxAllowedUsers bound.
func (n *Namespace) ValidateAllowed(allowed []string) error {
	if limit := n.limits.MaxAllowedUsers; limit > 0 && len(allowed) > limit {
		return fmt.Errorf("%w: %d allowed users, at most %d", ErrCapacity, len(allowed), n.limits.MaxAllowedUsers)
	}
	for _, u := range allowed {
		if err := ValidateUserName(u); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUserName checks a user or owner name.
func ValidateUserName(name string) error {
	return validate("user", name, MaxUserNameLength)
}

// ValidateFileName checks a file name.
func ValidateFileName(name string) error {
	return validate("file", name, MaxFileNameLength)
}

func validate(kind, name string, limit int) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty %s name", ErrInvalidName, kind)
	case len(name) > limit:
		return fmt.Errorf("%w: %s name is %d bytes, at most %d", ErrInvalidName, kind, len(name), limit)
	}
	return nil
}

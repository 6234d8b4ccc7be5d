package snapshot

import (
	"slices"
	"time"
)

// Header is the block geometry and accounting of a volume.
type Header struct {
	BlockSize   int
	TotalBlocks int
	FreeBlocks  int
	HighWater   int
}

// File is one file entry.
type File struct {
	Name         string
	Size         int64
	StartBlock   int
	CreatedAt    time.Time
	Owner        string
	AllowedUsers []string
}

// Directory is a directory and its files in creation order.
type Directory struct {
	Name  string
	Files []File
}

// Image is the complete state of a volume.
type Image struct {
	Header      Header
	Arena       []byte
	Users       []string
	Directories []Directory
}

// FileCount returns the number of files across all directories.
func (img *Image) FileCount() int {
	n := 0
	for _, d := range img.Directories {
		n += len(d.Files)
	}
	return n
}

// Clone returns a deep copy of img.
func (img *Image) Clone() *Image {
	c := &Image{
		Header: img.Header,
		Arena:  slices.Clone(img.Arena),
		Users:  slices.Clone(img.Users),
	}
	if img.Directories == nil {
		return c
	}
	c.Directories = make([]Directory, len(img.Directories))
	for i, d := range img.Directories {
		c.Directories[i] = Directory{Name: d.Name}
		if d.Files == nil {
			continue
		}
		files := make([]File, len(d.Files))
		for j, f := range d.Files {
			f.AllowedUsers = slices.Clone(f.AllowedUsers)
			files[j] = f
		}
		c.Directories[i].Files = files
	}
	return c
}

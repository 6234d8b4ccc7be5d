package volfs

import (
	"slices"
	"time"

	"github.com/hupe1980/volfs/internal/catalog"
)

// FileInfo describes one file. It is a copy; changing it has no effect on
// the volume.
type FileInfo struct {
	Directory    string    `json:"directory"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	StartBlock   int       `json:"start_block"`
	Blocks       int       `json:"blocks"`
	CreatedAt    time.Time `json:"created_at"`
	Owner        string    `json:"owner"`
	AllowedUsers []string  `json:"allowed_users,omitempty"`
}

// VolumeInfo summarizes block usage and table sizes.
type VolumeInfo struct {
	Allocation  string `json:"allocation"`
	BlockSize   int    `json:"block_size"`
	TotalBlocks int    `json:"total_blocks"`
	FreeBlocks  int    `json:"free_blocks"`
	HighWater   int    `json:"high_water"`
	DirCount    int    `json:"dir_count"`
	UserCount   int    `json:"user_count"`
	FileCount   int    `json:"file_count"`
	TotalBytes  int64  `json:"total_bytes"`
	FreeBytes   int64  `json:"free_bytes"`
}

// UsedBlocks returns TotalBlocks - FreeBlocks.
func (vi VolumeInfo) UsedBlocks() int { return vi.TotalBlocks - vi.FreeBlocks }

// DirectoryInfo lists the files of one directory in creation order.
type DirectoryInfo struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

func fileInfo(dir string, e *catalog.Entry, blocks int) FileInfo {
	return FileInfo{
		Directory:    dir,
		Name:         e.Name,
		Size:         e.Size,
		StartBlock:   e.StartBlock,
		Blocks:       blocks,
		CreatedAt:    e.CreatedAt,
		Owner:        e.Owner,
		AllowedUsers: slices.Clone(e.AllowedUsers),
	}
}

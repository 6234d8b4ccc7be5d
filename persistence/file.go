package persistence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hupe1980/volfs/internal/fs"
)

const bufferSize = 256 * 1024

var tempSeq atomic.Uint64

func tempName(path string) string {
	n := tempSeq.Add(1)
	return path + ".tmp-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(n, 36)
}

// SaveToFile atomically replaces path with the bytes produced by writeFunc.
// A nil fsys means fs.Default.
func SaveToFile(fsys fs.FileSystem, path string, writeFunc func(io.Writer) error) (err error) {
	if fsys == nil {
		fsys = fs.Default
	}
	dir := filepath.Dir(path)

	tmpName := tempName(path)
	tmp, err := fsys.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: create temp file for %s: %w", path, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if err != nil {
			_ = fsys.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, bufferSize)
	if err := writeFunc(buf); err != nil {
		return fmt.Errorf("persistence: write %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("persistence: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("persistence: sync %s: %w", path, err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: close %s: %w", path, err)
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("persistence: rename %s: %w", path, err)
	}

	if d, err := fsys.OpenFile(dir, os.O_RDONLY, 0); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFromFile opens path and passes a buffered reader to readFunc.
// A missing file is reported as an error matching os.ErrNotExist.
func LoadFromFile(fsys fs.FileSystem, path string, readFunc func(io.Reader) error) error {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(bufio.NewReaderSize(f, bufferSize))
}

// Package mmap maps files read-only into memory.
//
// blobstore.LocalStore uses it to serve snapshot blobs without copying them
// through a read buffer:
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	m.Advise(mmap.AccessSequential)
//	img, err := snapshot.Unmarshal(m.Bytes())
//
// Unix systems use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile and ignores access hints.
//
// Bytes must not be used after Close. Close is idempotent.
package mmap

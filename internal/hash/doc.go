// Package hash provides the checksum used by snapshot and checkpoint files.
//
// All checksums are CRC32-Castagnoli (CRC32C). Go's hash/crc32 picks the
// hardware implementation (SSE4.2, ARM CRC) when the CPU has one.
//
// One-shot:
//
//	sum := hash.CRC32C(payload)
//
// Streaming, e.g. while copying an arena to a writer:
//
//	h := hash.NewCRC32C()
//	io.Copy(io.MultiWriter(w, h), r)
//	sum := h.Sum32()
package hash

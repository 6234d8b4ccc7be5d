// Package snapshot encodes and decodes the complete state of a volume.
//
// An Image is a plain value tree: geometry, the raw arena, the user table, and
// every directory with its file entries. It holds no references into a live
// volume, and Decode allocates fresh storage for everything it returns.
//
// # Format
//
// All integers are little-endian.
//
//	Header (32 bytes):
//	  Magic        u32  "VOLF"
//	  Version      u32
//	  Compression  u8
//	  Reserved     [3]byte
//	  Checksum     u32  CRC32C of the uncompressed payload
//	  RawLength    u64
//	  StoredLength u64
//
//	Payload:
//	  BlockSize, TotalBlocks, FreeBlocks, HighWater  u32 each
//	  ArenaLength u64, Arena bytes
//	  UserCount u32, Users (u16 length + bytes each)
//	  DirCount u32, then per directory:
//	    Name, FileCount u32, then per file:
//	      Name, Size u64, StartBlock u32, CreatedAt i64 (UnixNano),
//	      Owner, AllowedCount u32, AllowedUsers
//
// The stored payload is compressed with LZ4 or Zstandard when that makes it
// smaller. Arenas are mostly zero bytes, so Zstd is the default.
//
// Decode validates framing only. Block accounting is checked by the volume
// when the image is restored.
package snapshot

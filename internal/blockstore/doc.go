// Package blockstore implements the block layer of a volume: a fixed,
// zero-initialized byte arena divided into equal-size blocks, plus the
// allocator that hands out contiguous block runs.
//
// Architecture:
//   - Arena: a single []byte of BlockSize*TotalBlocks bytes
//   - Occupancy: a Roaring bitmap with one bit per allocated block
//   - Accounting: FreeBlocks is the number of unallocated blocks and always
//     equals TotalBlocks minus the bitmap cardinality
//
// # Allocation policies
//
//   - PolicyBump: runs are placed at a high-water mark that only moves
//     forward. Freed runs are never reused, so repeated create/delete cycles
//     exhaust the address space even when FreeBlocks is large.
//   - PolicyFirstFit: runs are placed at the lowest gap in the occupancy
//     bitmap that is large enough. Freed runs are reused.
//
// A Store is not safe for concurrent use.
package blockstore

// Package longmap provides a fixed-capacity map from int64 keys to int64
// values that lives entirely inside a caller-owned block of memory.
//
// The map never allocates. All bookkeeping, including collision chains, is
// laid out inside the block, which makes it suitable for shared or
// memory-mapped segments.
//
// # Basic Usage
//
//	buf := make([]byte, 1<<20)
//	m, err := longmap.New(longmap.NewArena(buf), int64(len(buf)))
//	if err != nil {
//	    // handle [ErrRegionTooSmall]
//	}
//
//	prev, err := m.Put(1, 123) // prev == 0
//	v := m.Get(1)              // v == 123
//	n := m.Size()              // n == 1
//
// # Layout
//
// The region is split into three zones:
//
//	offset 0x00  cursor            next free overflow record (byte offset)
//	offset 0x08  overflow base     first overflow record (byte offset)
//	offset 0x10  indexed capacity  number of indexed slots
//	offset 0x18  indexed zone      indexed capacity * 24-byte records
//	...          overflow zone     2 * indexed capacity * 24-byte records
//
// Every record is three native-endian words: meta, key, value. Bit 0 of meta
// marks an occupied record, bit 1 marks a chain continuation, and the
// remaining bits hold the overflow index of the next record in the chain.
//
// A key hashes to the indexed slot key mod capacity. Colliding keys are
// appended to a singly-linked chain of overflow records claimed by bumping
// the cursor. Records are never freed.
//
// # Concurrency
//
// A [Map] performs no locking. It is safe for a single goroutine at a time.
// Callers that share a region between goroutines or processes must provide
// their own mutual exclusion (see the shmap package for a flock-based
// discipline).
//
// # Error Handling
//
// Configuration errors ([ErrRegionTooSmall], [ErrInvalidInput]) are returned
// by [New]. [ErrFull] is returned by [Map.Put] once the overflow zone is
// exhausted; the map stays exhausted for every later insert that needs a new
// overflow record. [Map.Get] and [Map.Size] never fail.
//
// [Map.Get] returns 0 both for absent keys and for keys stored with value 0.
package longmap

package longmap

import "fmt"

// Region format constants.
const (
	// Size of one machine word in bytes. Every header field and record field
	// is one word.
	wordSize = 8

	// Fixed header size in bytes: cursor, overflow base, indexed capacity.
	headerSize = 3 * wordSize

	// Record size in bytes: meta, key, value.
	recordSize = 3 * wordSize

	// Overflow records per indexed slot.
	overflowMultiplier = 2
)

// Header field offsets, relative to the region start.
const (
	offCursor          = 0x00 // int64, byte offset of the next free overflow record
	offOverflowBase    = 0x08 // int64, byte offset of overflow record 0
	offIndexedCapacity = 0x10 // int64, number of indexed slots
)

// Record field offsets, relative to the record start.
const (
	recOffMeta  = 0x00 // int64, packed flags + next index
	recOffKey   = 0x08 // int64
	recOffValue = 0x10 // int64
)

// Record meta bit layout.
const (
	metaHasValue uint64 = 1 << 0
	metaHasNext  uint64 = 1 << 1

	metaIndexShift = 2
	metaIndexMask  = ^(metaHasValue | metaHasNext)

	// Largest overflow index that fits in the meta index field.
	maxNextIndex = int64(^uint64(0) >> (metaIndexShift + 1))
)

// recordMeta is the decoded first word of a record.
type recordMeta uint64

// occupiedMeta marks a record that holds a key and value but has no successor.
const occupiedMeta = recordMeta(metaHasValue)

// linkedMeta returns the meta of an occupied record whose chain continues at
// overflow record next.
//
// next must already be validated against the overflow capacity, which
// [Layout] bounds by maxNextIndex.
func linkedMeta(next int64) recordMeta {
	return recordMeta(metaHasValue | metaHasNext | uint64(next)<<metaIndexShift)
}

func (m recordMeta) hasValue() bool { return uint64(m)&metaHasValue != 0 }

func (m recordMeta) hasNext() bool { return uint64(m)&metaHasNext != 0 }

// nextIndex returns the overflow index stored in bits 2..63.
func (m recordMeta) nextIndex() int64 {
	return int64((uint64(m) & metaIndexMask) >> metaIndexShift)
}

// reservedBitsSet reports whether the meta carries a next index without the
// continuation flag. Such a record was never written by this package.
func (m recordMeta) reservedBitsSet() bool {
	return !m.hasNext() && uint64(m)&metaIndexMask != 0
}

func (m recordMeta) String() string {
	if !m.hasValue() {
		return "empty"
	}

	if !m.hasNext() {
		return "occupied"
	}

	return fmt.Sprintf("occupied next=%d", m.nextIndex())
}

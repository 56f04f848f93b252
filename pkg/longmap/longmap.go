package longmap

import (
	"fmt"
	"math"
)

// Map is a fixed-capacity int64 to int64 map stored inside a [Memory].
//
// The header, every slot and every chain record live in the memory; Map keeps
// only the geometry it read or wrote when it was created. The overflow cursor
// is read from memory on every insert, so several Map values (in one or
// several processes) can share one region as long as callers serialize
// access.
//
// Map is not safe for concurrent use.
type Map struct {
	mem Memory
	geo Geometry
}

// New formats the first size bytes of mem as an empty map.
//
// The header is written and every indexed slot meta is cleared. Overflow
// records are not touched; they are initialized as they are claimed.
//
// Returns [ErrRegionTooSmall] if size cannot hold one indexed slot with its
// overflow records, and [ErrInvalidInput] if mem is nil or shorter than size.
func New(mem Memory, size int64) (*Map, error) {
	if mem == nil {
		return nil, fmt.Errorf("memory is nil: %w", ErrInvalidInput)
	}

	if size > mem.Len() {
		return nil, fmt.Errorf("size %d exceeds memory length %d: %w", size, mem.Len(), ErrInvalidInput)
	}

	geo, err := Layout(size)
	if err != nil {
		return nil, err
	}

	mem.WriteWord(offCursor, geo.OverflowBase)
	mem.WriteWord(offOverflowBase, geo.OverflowBase)
	mem.WriteWord(offIndexedCapacity, geo.IndexedCapacity)

	for slot := range geo.IndexedCapacity {
		mem.WriteWord(geo.IndexedBase+slot*recordSize+recOffMeta, 0)
	}

	return &Map{mem: mem, geo: geo}, nil
}

// Attach opens a map previously formatted by [New] in mem.
//
// The header is validated against the memory length. A cursor past the end
// of the overflow zone is accepted: it describes an exhausted map. Returns
// [ErrCorrupt] if the header is inconsistent, and [ErrInvalidInput] if mem is
// nil.
func Attach(mem Memory) (*Map, error) {
	if mem == nil {
		return nil, fmt.Errorf("memory is nil: %w", ErrInvalidInput)
	}

	if mem.Len() < headerSize {
		return nil, fmt.Errorf("memory length %d cannot hold the header: %w", mem.Len(), ErrCorrupt)
	}

	cursor := mem.ReadWord(offCursor)
	overflowBase := mem.ReadWord(offOverflowBase)
	indexedCapacity := mem.ReadWord(offIndexedCapacity)

	if indexedCapacity <= 0 || indexedCapacity > maxIndexedCapacity {
		return nil, fmt.Errorf("indexed capacity %d out of range: %w", indexedCapacity, ErrCorrupt)
	}

	geo := Geometry{
		Size:             mem.Len(),
		IndexedCapacity:  indexedCapacity,
		OverflowCapacity: indexedCapacity * overflowMultiplier,
		IndexedBase:      headerSize,
		OverflowBase:     headerSize + indexedCapacity*recordSize,
	}
	geo.OverflowEnd = geo.OverflowBase + geo.OverflowCapacity*recordSize

	if overflowBase != geo.OverflowBase {
		return nil, fmt.Errorf("overflow base %d, want %d for capacity %d: %w",
			overflowBase, geo.OverflowBase, indexedCapacity, ErrCorrupt)
	}

	if geo.OverflowEnd > mem.Len() {
		return nil, fmt.Errorf("overflow zone ends at %d, memory length %d: %w", geo.OverflowEnd, mem.Len(), ErrCorrupt)
	}

	if cursor < overflowBase || (cursor-overflowBase)%recordSize != 0 {
		return nil, fmt.Errorf("cursor %d not a record offset at or after %d: %w", cursor, overflowBase, ErrCorrupt)
	}

	return &Map{mem: mem, geo: geo}, nil
}

// Put associates value with key.
//
// If key is present its value is replaced and the previous value returned.
// Otherwise the key is stored in its indexed slot, or appended to the slot's
// chain, and 0 is returned.
//
// Returns [ErrFull] when a new chain record is needed and the overflow zone
// is exhausted; the map is unchanged except for the overflow cursor. Returns
// [ErrCorrupt] if the chain leaves the overflow zone or loops.
func (m *Map) Put(key, value int64) (int64, error) {
	rec := m.slotOffset(key)

	for range m.maxChainLength() {
		meta := m.readMeta(rec)

		if !meta.hasValue() {
			m.writeRecord(rec, occupiedMeta, key, value)

			return 0, nil
		}

		if m.mem.ReadWord(rec+recOffKey) == key {
			prev := m.mem.ReadWord(rec + recOffValue)
			m.mem.WriteWord(rec+recOffValue, value)

			return prev, nil
		}

		if !meta.hasNext() {
			next, err := m.claim()
			if err != nil {
				return 0, err
			}

			m.writeRecord(m.overflowOffset(next), occupiedMeta, key, value)
			m.mem.WriteWord(rec+recOffMeta, int64(linkedMeta(next)))

			return 0, nil
		}

		var err error

		rec, err = m.follow(meta)
		if err != nil {
			return 0, err
		}
	}

	return 0, fmt.Errorf("chain for key %d longer than %d records: %w", key, m.maxChainLength(), ErrCorrupt)
}

// Get returns the value stored for key, or 0 if key is absent.
//
// A corrupt chain is treated as the end of the chain.
func (m *Map) Get(key int64) int64 {
	rec := m.slotOffset(key)

	for range m.maxChainLength() {
		meta := m.readMeta(rec)
		if !meta.hasValue() {
			return 0
		}

		if m.mem.ReadWord(rec+recOffKey) == key {
			return m.mem.ReadWord(rec + recOffValue)
		}

		if !meta.hasNext() {
			return 0
		}

		var err error

		rec, err = m.follow(meta)
		if err != nil {
			return 0
		}
	}

	return 0
}

// Size returns the number of distinct keys stored.
//
// It counts occupied indexed slots and claimed overflow records. Claims that
// failed with [ErrFull] are not counted.
func (m *Map) Size() int64 {
	var occupied int64

	for slot := range m.geo.IndexedCapacity {
		if m.readMeta(m.geo.IndexedBase + slot*recordSize).hasValue() {
			occupied++
		}
	}

	return occupied + m.overflowUsed()
}

// Geometry returns the layout of the region the map lives in.
func (m *Map) Geometry() Geometry {
	return m.geo
}

// Remaining returns the number of overflow records not yet claimed.
func (m *Map) Remaining() int64 {
	return m.geo.OverflowCapacity - m.overflowUsed()
}

// Exhausted reports whether an insert has already failed with [ErrFull].
func (m *Map) Exhausted() bool {
	return m.mem.ReadWord(offCursor) > m.geo.OverflowEnd
}

// overflowUsed returns the number of claimed overflow records, clamped to the
// overflow capacity.
func (m *Map) overflowUsed() int64 {
	used := (m.mem.ReadWord(offCursor) - m.geo.OverflowBase) / recordSize

	return min(max(used, 0), m.geo.OverflowCapacity)
}

// claim bumps the cursor by one record and returns the overflow index it
// pointed at. The cursor moves even when the claim fails.
func (m *Map) claim() (int64, error) {
	cursor := m.mem.ReadWord(offCursor)
	if cursor < m.geo.OverflowBase {
		return 0, fmt.Errorf("cursor %d before overflow base %d: %w", cursor, m.geo.OverflowBase, ErrCorrupt)
	}

	// Saturate instead of wrapping; the map is long exhausted by then.
	if cursor <= math.MaxInt64-recordSize {
		m.mem.WriteWord(offCursor, cursor+recordSize)
	}

	idx := (cursor - m.geo.OverflowBase) / recordSize
	if idx >= m.geo.OverflowCapacity {
		return 0, fmt.Errorf("overflow record %d of %d: %w", idx, m.geo.OverflowCapacity, ErrFull)
	}

	return idx, nil
}

// follow returns the offset of the record meta links to.
func (m *Map) follow(meta recordMeta) (int64, error) {
	next := meta.nextIndex()
	if next >= m.geo.OverflowCapacity {
		return 0, fmt.Errorf("next index %d outside overflow capacity %d: %w", next, m.geo.OverflowCapacity, ErrCorrupt)
	}

	return m.overflowOffset(next), nil
}

// maxChainLength bounds every chain walk: a slot record plus every overflow
// record.
func (m *Map) maxChainLength() int64 {
	return 1 + m.geo.OverflowCapacity
}

// slotOffset returns the offset of the indexed slot for key.
// Negative keys wrap into [0, capacity).
func (m *Map) slotOffset(key int64) int64 {
	slot := key % m.geo.IndexedCapacity
	if slot < 0 {
		slot += m.geo.IndexedCapacity
	}

	return m.geo.IndexedBase + slot*recordSize
}

func (m *Map) overflowOffset(idx int64) int64 {
	return m.geo.OverflowBase + idx*recordSize
}

func (m *Map) readMeta(rec int64) recordMeta {
	return recordMeta(uint64(m.mem.ReadWord(rec + recOffMeta)))
}

func (m *Map) writeRecord(rec int64, meta recordMeta, key, value int64) {
	m.mem.WriteWord(rec+recOffKey, key)
	m.mem.WriteWord(rec+recOffValue, value)
	m.mem.WriteWord(rec+recOffMeta, int64(uint64(meta)))
}

package longmap

import "fmt"

// Geometry describes how a region of a given size is carved into zones.
//
// All offsets are byte offsets from the region start.
type Geometry struct {
	// Size is the region size the geometry was computed for.
	Size int64
	// IndexedCapacity is the number of indexed slots.
	IndexedCapacity int64
	// OverflowCapacity is the number of overflow records,
	// always 2 * IndexedCapacity.
	OverflowCapacity int64
	// IndexedBase is the offset of indexed slot 0.
	IndexedBase int64
	// OverflowBase is the offset of overflow record 0.
	OverflowBase int64
	// OverflowEnd is the offset one past the last overflow record.
	// Bytes between OverflowEnd and Size are unused.
	OverflowEnd int64
}

// MaxEntries returns the number of distinct keys the map can hold when every
// indexed slot and every overflow record is in use.
func (g Geometry) MaxEntries() int64 {
	return g.IndexedCapacity + g.OverflowCapacity
}

// Layout computes the geometry of a region of size bytes.
//
// A third of the space after the header, rounded down to whole records, is
// the indexed zone. The overflow zone follows directly and holds twice as
// many records. Returns [ErrRegionTooSmall] if not even one indexed slot
// fits, and [ErrInvalidInput] for a negative size or one above the
// implementation limit.
func Layout(size int64) (Geometry, error) {
	if size < 0 {
		return Geometry{}, fmt.Errorf("size %d is negative: %w", size, ErrInvalidInput)
	}

	if size > maxRegionSize {
		return Geometry{}, fmt.Errorf("size %d exceeds max %d: %w", size, maxRegionSize, ErrInvalidInput)
	}

	if size < headerSize {
		return Geometry{}, fmt.Errorf("size %d cannot hold the %d-byte header: %w", size, headerSize, ErrRegionTooSmall)
	}

	indexedZone := (size - headerSize) / (1 + overflowMultiplier)
	indexedCapacity := indexedZone / recordSize

	if indexedCapacity <= 0 {
		return Geometry{}, fmt.Errorf("size %d holds no indexed slot (need %d bytes): %w",
			size, RequiredSize(1), ErrRegionTooSmall)
	}

	overflowCapacity := indexedCapacity * overflowMultiplier
	overflowBase := headerSize + indexedCapacity*recordSize

	return Geometry{
		Size:             size,
		IndexedCapacity:  indexedCapacity,
		OverflowCapacity: overflowCapacity,
		IndexedBase:      headerSize,
		OverflowBase:     overflowBase,
		OverflowEnd:      overflowBase + overflowCapacity*recordSize,
	}, nil
}

// RequiredSize returns the smallest region size whose [Layout] yields
// exactly indexedCapacity slots. It returns 0 for a non-positive capacity
// and for one above the implementation limit.
func RequiredSize(indexedCapacity int64) int64 {
	if indexedCapacity <= 0 || indexedCapacity > maxIndexedCapacity {
		return 0
	}

	return headerSize + indexedCapacity*(1+overflowMultiplier)*recordSize
}

package longmap

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// entry is one stored key/value pair as seen by a chain walk.
type entry struct {
	slot     int64 // indexed slot the chain hangs off
	depth    int64 // 0 for the indexed record, 1.. for overflow records
	overflow int64 // overflow index, -1 for the indexed record
	key      int64
	value    int64
}

// walk calls fn for every stored entry, slot by slot in chain order, and
// stops early when fn returns false.
//
// Returns [ErrCorrupt] if a chain leaves the overflow zone, visits an
// overflow record twice, or a record carries next-index bits without the
// continuation flag.
func (m *Map) walk(fn func(e entry) bool) error {
	seen := make([]bool, m.geo.OverflowCapacity)

	for slot := range m.geo.IndexedCapacity {
		rec := m.geo.IndexedBase + slot*recordSize
		overflow := int64(-1)

		for depth := int64(0); ; depth++ {
			meta := m.readMeta(rec)
			if !meta.hasValue() {
				if depth > 0 {
					return fmt.Errorf("slot %d: overflow record %d is linked but empty: %w", slot, overflow, ErrCorrupt)
				}

				if uint64(meta) != 0 {
					return fmt.Errorf("slot %d: empty record has meta %#x: %w", slot, uint64(meta), ErrCorrupt)
				}

				break
			}

			if meta.reservedBitsSet() {
				return fmt.Errorf("slot %d depth %d: meta %#x has index bits without next flag: %w",
					slot, depth, uint64(meta), ErrCorrupt)
			}

			e := entry{
				slot:     slot,
				depth:    depth,
				overflow: overflow,
				key:      m.mem.ReadWord(rec + recOffKey),
				value:    m.mem.ReadWord(rec + recOffValue),
			}

			if !fn(e) {
				return nil
			}

			if !meta.hasNext() {
				break
			}

			next, err := m.follow(meta)
			if err != nil {
				return fmt.Errorf("slot %d depth %d: %w", slot, depth, err)
			}

			overflow = meta.nextIndex()
			if seen[overflow] {
				return fmt.Errorf("slot %d: overflow record %d reached twice: %w", slot, overflow, ErrCorrupt)
			}

			seen[overflow] = true
			rec = next
		}
	}

	return nil
}

// Check walks every chain and verifies the region is consistent.
//
// Besides the conditions reported by a walk, it verifies that every claimed
// overflow record is linked exactly once and that no key is stored twice.
func (m *Map) Check() error {
	var linked int64

	keys := make(map[int64]int64, m.geo.IndexedCapacity)

	var dup error

	err := m.walk(func(e entry) bool {
		if e.depth > 0 {
			linked++
		}

		if prevSlot, ok := keys[e.key]; ok {
			dup = fmt.Errorf("key %d stored in slots %d and %d: %w", e.key, prevSlot, e.slot, ErrCorrupt)

			return false
		}

		keys[e.key] = e.slot

		if want := m.slotIndex(e.key); want != e.slot {
			dup = fmt.Errorf("key %d found in slot %d, hashes to %d: %w", e.key, e.slot, want, ErrCorrupt)

			return false
		}

		return true
	})
	if err != nil {
		return err
	}

	if dup != nil {
		return dup
	}

	if used := m.overflowUsed(); linked != used {
		return fmt.Errorf("%d overflow records claimed, %d linked: %w", used, linked, ErrCorrupt)
	}

	return nil
}

// String renders the stored pairs as "LongMap(k -> v, ...)" in slot and
// chain order. A corrupt region renders the pairs reached before the damage.
func (m *Map) String() string {
	var b strings.Builder

	b.WriteString("LongMap(")

	first := true

	_ = m.walk(func(e entry) bool {
		if !first {
			b.WriteString(", ")
		}

		first = false

		fmt.Fprintf(&b, "%d -> %d", e.key, e.value)

		return true
	})

	b.WriteByte(')')

	return b.String()
}

// Dump writes a human-readable description of the region layout to w.
// When verbose is set, every non-empty chain is listed as well.
func (m *Map) Dump(w io.Writer, verbose bool) error {
	cursor := m.mem.ReadWord(offCursor)

	lines := []string{
		fmt.Sprintf("size:              %d", m.Size()),
		fmt.Sprintf("region size:       %d", m.geo.Size),
		fmt.Sprintf("indexed base:      %d", m.geo.IndexedBase),
		fmt.Sprintf("overflow base:     %d", m.geo.OverflowBase),
		fmt.Sprintf("overflow end:      %d", m.geo.OverflowEnd),
		fmt.Sprintf("cursor:            %d", cursor),
		fmt.Sprintf("overflow used:     %d/%d", m.overflowUsed(), m.geo.OverflowCapacity),
		fmt.Sprintf("indexed capacity:  %d", m.geo.IndexedCapacity),
		fmt.Sprintf("overflow capacity: %d", m.geo.OverflowCapacity),
		fmt.Sprintf("max entries:       %d", m.geo.MaxEntries()),
		fmt.Sprintf("overall capacity:  %d - %d", 1+m.geo.OverflowCapacity, m.geo.MaxEntries()),
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}

	if !verbose {
		return nil
	}

	var (
		chain    strings.Builder
		slot     = int64(-1)
		writeErr error
	)

	flush := func() {
		if slot < 0 || writeErr != nil {
			return
		}

		_, writeErr = fmt.Fprintf(w, "slot %d: %s\n", slot, chain.String())
		chain.Reset()
	}

	walkErr := m.walk(func(e entry) bool {
		if e.slot != slot {
			flush()

			slot = e.slot
		} else {
			chain.WriteString(", ")
		}

		fmt.Fprintf(&chain, "%d -> %d", e.key, e.value)

		if e.overflow >= 0 {
			fmt.Fprintf(&chain, " [overflow %d]", e.overflow)
		}

		return writeErr == nil
	})

	flush()

	if writeErr != nil {
		return fmt.Errorf("write dump: %w", writeErr)
	}

	return walkErr
}

// Digest returns an order-independent checksum of the stored pairs.
//
// Two maps holding the same pairs have the same digest regardless of
// geometry or insertion order.
func (m *Map) Digest() (uint64, error) {
	var (
		sum uint64
		buf [16]byte
	)

	err := m.walk(func(e entry) bool {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(e.key))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(e.value))
		sum += xxhash.Sum64(buf[:])

		return true
	})
	if err != nil {
		return 0, err
	}

	return sum, nil
}

// slotIndex returns the indexed slot for key.
func (m *Map) slotIndex(key int64) int64 {
	return (m.slotOffset(key) - m.geo.IndexedBase) / recordSize
}

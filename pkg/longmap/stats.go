package longmap

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Stats is a point-in-time summary of a map's occupancy.
type Stats struct {
	Size             int64
	IndexedCapacity  int64
	IndexedUsed      int64
	OverflowCapacity int64
	OverflowUsed     int64
	MaxEntries       int64

	// LongestChain is the number of entries in the longest chain,
	// counting the indexed record.
	LongestChain int64

	// ChainLengths[n] is the number of slots holding exactly n entries.
	ChainLengths []int64

	// Exhausted is set once an insert has failed with [ErrFull].
	Exhausted bool
}

// LoadFactor returns Size as a fraction of MaxEntries.
func (s Stats) LoadFactor() float64 {
	if s.MaxEntries == 0 {
		return 0
	}

	return float64(s.Size) / float64(s.MaxEntries)
}

// String renders the stats as an aligned table.
func (s Stats) String() string {
	var b strings.Builder

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "size\t%d\n", s.Size)
	fmt.Fprintf(tw, "indexed\t%d/%d\n", s.IndexedUsed, s.IndexedCapacity)
	fmt.Fprintf(tw, "overflow\t%d/%d\n", s.OverflowUsed, s.OverflowCapacity)
	fmt.Fprintf(tw, "load factor\t%.3f\n", s.LoadFactor())
	fmt.Fprintf(tw, "longest chain\t%d\n", s.LongestChain)
	fmt.Fprintf(tw, "exhausted\t%t\n", s.Exhausted)

	for n, slots := range s.ChainLengths {
		if n == 0 || slots == 0 {
			continue
		}

		fmt.Fprintf(tw, "chains of %d\t%d\n", n, slots)
	}

	_ = tw.Flush()

	return b.String()
}

// Stats walks every chain and summarizes occupancy.
//
// Returns [ErrCorrupt] if a chain is damaged.
func (m *Map) Stats() (Stats, error) {
	lengths := make([]int64, m.geo.IndexedCapacity)

	var indexedUsed int64

	err := m.walk(func(e entry) bool {
		if e.depth == 0 {
			indexedUsed++
		}

		lengths[e.slot]++

		return true
	})
	if err != nil {
		return Stats{}, err
	}

	var longest int64
	for _, n := range lengths {
		longest = max(longest, n)
	}

	histogram := make([]int64, longest+1)
	for _, n := range lengths {
		histogram[n]++
	}

	overflowUsed := m.overflowUsed()

	return Stats{
		Size:             indexedUsed + overflowUsed,
		IndexedCapacity:  m.geo.IndexedCapacity,
		IndexedUsed:      indexedUsed,
		OverflowCapacity: m.geo.OverflowCapacity,
		OverflowUsed:     overflowUsed,
		MaxEntries:       m.geo.MaxEntries(),
		LongestChain:     longest,
		ChainLengths:     histogram,
		Exhausted:        m.Exhausted(),
	}, nil
}

package longmap_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasilov/vk-test/pkg/longmap"
)

// newMap formats a zeroed buffer of size bytes.
func newMap(t *testing.T, size int64) (*longmap.Map, *longmap.Arena) {
	t.Helper()

	arena := longmap.NewArena(make([]byte, size))

	m, err := longmap.New(arena, size)
	require.NoError(t, err, "New(%d)", size)

	return m, arena
}

// newMapWithCapacity formats a region holding exactly capacity indexed slots.
func newMapWithCapacity(t *testing.T, capacity int64) *longmap.Map {
	t.Helper()

	m, _ := newMap(t, longmap.RequiredSize(capacity))
	require.Equal(t, capacity, m.Geometry().IndexedCapacity)

	return m
}

func mustPut(t *testing.T, m *longmap.Map, key, value int64) int64 {
	t.Helper()

	prev, err := m.Put(key, value)
	require.NoError(t, err, "Put(%d, %d)", key, value)

	return prev
}

func Test_New_Returns_Error_When_Arguments_Are_Invalid(t *testing.T) {
	t.Parallel()

	_, err := longmap.New(nil, 1024)
	require.ErrorIs(t, err, longmap.ErrInvalidInput)

	_, err = longmap.New(longmap.NewArena(make([]byte, 512)), 1024)
	require.ErrorIs(t, err, longmap.ErrInvalidInput)

	_, err = longmap.New(longmap.NewArena(make([]byte, 95)), 95)
	require.ErrorIs(t, err, longmap.ErrRegionTooSmall)

	_, err = longmap.New(longmap.NewArena(make([]byte, 16)), 16)
	require.ErrorIs(t, err, longmap.ErrRegionTooSmall)
}

func Test_New_Writes_Header_And_Clears_Slots_When_Region_Is_Dirty(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = 0xFF
	}

	arena := longmap.NewArena(buf)

	m, err := longmap.New(arena, 1024)
	require.NoError(t, err)

	assert.Equal(t, int64(336), arena.ReadWord(0), "cursor")
	assert.Equal(t, int64(336), arena.ReadWord(8), "overflow base")
	assert.Equal(t, int64(13), arena.ReadWord(16), "indexed capacity")

	for slot := range int64(13) {
		assert.Zero(t, arena.ReadWord(24+slot*24), "slot %d meta", slot)
	}

	assert.Equal(t, int64(0), m.Size())
	assert.Equal(t, int64(0), m.Get(-1))
	require.NoError(t, m.Check())
}

func Test_Get_Returns_Zero_For_Every_Key_When_Map_Is_Empty(t *testing.T) {
	t.Parallel()

	m, _ := newMap(t, 1024)

	for k := int64(-1000); k < 1000; k++ {
		if got := m.Get(k); got != 0 {
			t.Fatalf("Get(%d) = %d on empty map", k, got)
		}
	}

	for _, k := range []int64{math.MinInt64, math.MaxInt64} {
		require.Zero(t, m.Get(k), "Get(%d)", k)
	}

	require.Zero(t, m.Size())
}

func Test_Put_Returns_Previous_Value_When_Key_Is_Overwritten(t *testing.T) {
	t.Parallel()

	m, _ := newMap(t, 1024)

	require.Equal(t, int64(0), mustPut(t, m, 1, 123))
	require.Equal(t, int64(123), mustPut(t, m, 1, 421))
	require.Equal(t, int64(421), m.Get(1))
	require.Equal(t, int64(1), m.Size())
}

func Test_Get_Returns_Value_When_Many_Keys_Inserted(t *testing.T) {
	t.Parallel()

	const n = 99_999

	// n keys need at most n records; a region with capacity n never fills.
	m := newMapWithCapacity(t, n)

	for i := int64(1); i <= n; i++ {
		require.Zero(t, mustPut(t, m, i, i*100))
	}

	for i := int64(1); i <= n; i++ {
		if got := m.Get(i); got != i*100 {
			t.Fatalf("Get(%d) = %d, want %d", i, got, i*100)
		}
	}

	require.Equal(t, int64(n), m.Size())
	require.NoError(t, m.Check())
}

func Test_Put_Keeps_Both_Keys_Retrievable_When_Keys_Collide(t *testing.T) {
	t.Parallel()

	const capacity = 13

	tests := []struct {
		name string
		keys []int64
	}{
		{name: "two keys in one slot", keys: []int64{1, 1 + capacity}},
		{name: "reverse order", keys: []int64{1 + capacity, 1}},
		{name: "negative and positive", keys: []int64{-12, 1, 14, -25}},
		{name: "long chain", keys: []int64{0, capacity, 2 * capacity, 3 * capacity, 4 * capacity}},
		{name: "extremes", keys: []int64{math.MinInt64, math.MaxInt64, 0, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newMapWithCapacity(t, capacity)

			for i, k := range tt.keys {
				require.Zero(t, mustPut(t, m, k, int64(i+1)*7))
			}

			for i, k := range tt.keys {
				require.Equal(t, int64(i+1)*7, m.Get(k), "Get(%d)", k)
			}

			require.Equal(t, int64(len(tt.keys)), m.Size())

			// Overwrite every key through its chain; size must not move.
			for i, k := range tt.keys {
				require.Equal(t, int64(i+1)*7, mustPut(t, m, k, -k))
			}

			for _, k := range tt.keys {
				require.Equal(t, -k, m.Get(k), "Get(%d) after overwrite", k)
			}

			require.Equal(t, int64(len(tt.keys)), m.Size())
			require.NoError(t, m.Check())
		})
	}
}

func Test_Get_Returns_Zero_When_Absent_Key_Shares_Slot_With_Present_Keys(t *testing.T) {
	t.Parallel()

	m := newMapWithCapacity(t, 4)

	mustPut(t, m, 2, 20)
	mustPut(t, m, 6, 60)

	require.Zero(t, m.Get(10))
	require.Zero(t, m.Get(-2))
	require.Equal(t, int64(60), m.Get(6))
}

func Test_Put_Maps_Negative_Keys_Into_Table_When_Remainder_Is_Negative(t *testing.T) {
	t.Parallel()

	m, arena := newMap(t, longmap.RequiredSize(5))

	mustPut(t, m, -1, 11)

	// -1 mod 5 wraps to slot 4.
	slot4 := int64(24 + 4*24)
	require.Equal(t, int64(1), arena.ReadWord(slot4), "slot 4 meta")
	require.Equal(t, int64(-1), arena.ReadWord(slot4+8), "slot 4 key")
	require.Equal(t, int64(11), arena.ReadWord(slot4+16), "slot 4 value")
}

func Test_Put_Stores_Zero_Value_Indistinguishable_From_Absent_Key(t *testing.T) {
	t.Parallel()

	m, _ := newMap(t, 1024)

	require.Zero(t, mustPut(t, m, 5, 0))
	require.Zero(t, m.Get(5))
	require.Equal(t, int64(1), m.Size(), "key with value 0 still counts")
	require.Zero(t, mustPut(t, m, 5, 9), "previous value 0")
	require.Equal(t, int64(1), m.Size())
}

func Test_Put_Writes_Chain_Link_In_Wire_Format_When_Slot_Collides(t *testing.T) {
	t.Parallel()

	m, arena := newMap(t, longmap.RequiredSize(2))

	mustPut(t, m, 1, 10)
	mustPut(t, m, 3, 30)
	mustPut(t, m, 5, 50)

	overflowBase := int64(24 + 2*24)
	slot1 := int64(24 + 24)

	// slot 1 -> overflow 0 -> overflow 1
	require.Equal(t, int64(0b011), arena.ReadWord(slot1), "slot 1 meta")
	require.Equal(t, int64(0b111), arena.ReadWord(overflowBase), "overflow 0 meta")
	require.Equal(t, int64(3), arena.ReadWord(overflowBase+8))
	require.Equal(t, int64(0b001), arena.ReadWord(overflowBase+24), "overflow 1 meta")
	require.Equal(t, int64(5), arena.ReadWord(overflowBase+24+8))
	require.Equal(t, overflowBase+2*24, arena.ReadWord(0), "cursor")
}

func Test_Put_Returns_ErrFull_When_Colliding_Keys_Exceed_Chain_Capacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int64{1, 2, 13, 100} {
		m := newMapWithCapacity(t, capacity)

		// One slot plus every overflow record.
		fits := 1 + 2*capacity

		for i := range fits {
			require.Zero(t, mustPut(t, m, i*capacity, i+1), "capacity %d key %d", capacity, i*capacity)
		}

		require.Zero(t, m.Remaining())
		require.False(t, m.Exhausted())

		_, err := m.Put(fits*capacity, -1)
		require.ErrorIs(t, err, longmap.ErrFull, "capacity %d", capacity)
		require.True(t, m.Exhausted())

		require.Zero(t, m.Get(fits*capacity), "failed insert must not be applied")
		require.Equal(t, fits, m.Size(), "size must not count failed claim")

		for i := range fits {
			require.Equal(t, i+1, m.Get(i*capacity), "capacity %d key %d", capacity, i*capacity)
		}

		require.NoError(t, m.Check())
	}
}

func Test_Put_Stays_Full_When_Overflow_Is_Exhausted(t *testing.T) {
	t.Parallel()

	m, _ := newMap(t, 1024)

	var (
		inserted []int64
		fullErr  error
	)

	for k := int64(1); ; k++ {
		_, err := m.Put(k, k*10)
		if err != nil {
			fullErr = err

			break
		}

		inserted = append(inserted, k)
	}

	require.ErrorIs(t, fullErr, longmap.ErrFull)
	require.Len(t, inserted, 13+26, "every slot and overflow record must be used")

	// Every slot is occupied, so each new key needs a claim.
	for i := range 5 {
		_, err := m.Put(int64(1000+i*13), 1)
		require.ErrorIs(t, err, longmap.ErrFull)
	}

	// Overwrites never need a new record.
	for _, k := range inserted {
		require.Equal(t, k*10, mustPut(t, m, k, k*20))
	}

	for _, k := range inserted {
		require.Equal(t, k*20, m.Get(k))
	}

	require.Equal(t, int64(len(inserted)), m.Size())
	require.Zero(t, m.Remaining())
}

func Test_Put_Uses_Empty_Slot_When_Overflow_Is_Exhausted(t *testing.T) {
	t.Parallel()

	m := newMapWithCapacity(t, 3)

	// Fill slot 0 and its chain, leaving slots 1 and 2 free.
	for i := range int64(7) {
		mustPut(t, m, i*3, i)
	}

	_, err := m.Put(21, 1)
	require.ErrorIs(t, err, longmap.ErrFull)

	require.Zero(t, mustPut(t, m, 1, 100), "empty indexed slot needs no claim")
	require.Equal(t, int64(100), m.Get(1))
	require.Equal(t, int64(8), m.Size())
}

func Test_Map_Sees_Writes_When_Two_Maps_Share_A_Region(t *testing.T) {
	t.Parallel()

	writer, arena := newMap(t, 1024)

	reader, err := longmap.Attach(arena)
	require.NoError(t, err)

	mustPut(t, writer, 1, 10)
	mustPut(t, writer, 14, 140)

	require.Equal(t, int64(140), reader.Get(14))
	require.Equal(t, int64(2), reader.Size())

	// The reader claims the next overflow record from the shared cursor.
	mustPut(t, reader, 27, 270)

	require.Equal(t, int64(270), writer.Get(27))
	require.Equal(t, int64(3), writer.Size())
	require.Equal(t, int64(24), writer.Remaining())
	require.NoError(t, writer.Check())
}

func Test_Put_Returns_ErrCorrupt_When_Chain_Points_Outside_Overflow(t *testing.T) {
	t.Parallel()

	m, arena := newMap(t, longmap.RequiredSize(2))

	mustPut(t, m, 0, 1)
	mustPut(t, m, 2, 2)

	// Point slot 0 at overflow record 99.
	arena.WriteWord(24, int64(0b011|99<<2))

	_, err := m.Put(4, 4)
	require.True(t, errors.Is(err, longmap.ErrCorrupt), "Put error = %v", err)
	require.Zero(t, m.Get(4))
	require.Zero(t, m.Get(2), "lookup stops at the damaged link")
}

func Test_Put_Returns_ErrCorrupt_When_Chain_Loops(t *testing.T) {
	t.Parallel()

	m, arena := newMap(t, longmap.RequiredSize(2))

	mustPut(t, m, 0, 1)
	mustPut(t, m, 2, 2)

	// Overflow record 0 links back to itself.
	overflowBase := int64(24 + 2*24)
	arena.WriteWord(overflowBase, int64(0b011))

	_, err := m.Put(4, 4)
	require.ErrorIs(t, err, longmap.ErrCorrupt)
	require.Zero(t, m.Get(4), "bounded walk must terminate")
	require.ErrorIs(t, m.Check(), longmap.ErrCorrupt)
}

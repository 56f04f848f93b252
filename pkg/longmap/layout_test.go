package longmap_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dkrasilov/vk-test/pkg/longmap"
)

func Test_Layout_Computes_Zones_When_Region_Is_Large_Enough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int64
		want longmap.Geometry
	}{
		{
			// (1024-24)/3 = 333 bytes -> 13 slots, 26 overflow records, 64 bytes unused.
			name: "1 KiB",
			size: 1024,
			want: longmap.Geometry{
				Size: 1024, IndexedCapacity: 13, OverflowCapacity: 26,
				IndexedBase: 24, OverflowBase: 336, OverflowEnd: 960,
			},
		},
		{
			name: "exactly one slot",
			size: 96,
			want: longmap.Geometry{
				Size: 96, IndexedCapacity: 1, OverflowCapacity: 2,
				IndexedBase: 24, OverflowBase: 48, OverflowEnd: 96,
			},
		},
		{
			name: "one byte short of two slots",
			size: 167,
			want: longmap.Geometry{
				Size: 167, IndexedCapacity: 1, OverflowCapacity: 2,
				IndexedBase: 24, OverflowBase: 48, OverflowEnd: 96,
			},
		},
		{
			name: "exactly two slots",
			size: 168,
			want: longmap.Geometry{
				Size: 168, IndexedCapacity: 2, OverflowCapacity: 4,
				IndexedBase: 24, OverflowBase: 72, OverflowEnd: 168,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := longmap.Layout(tt.size)
			if err != nil {
				t.Fatalf("Layout(%d) error: %v", tt.size, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Layout(%d) mismatch (-want +got):\n%s", tt.size, diff)
			}

			if got.MaxEntries() != 3*got.IndexedCapacity {
				t.Fatalf("MaxEntries() = %d, want %d", got.MaxEntries(), 3*got.IndexedCapacity)
			}
		})
	}
}

func Test_Layout_Returns_Error_When_Size_Is_Unusable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size    int64
		wantErr error
	}{
		{size: -1, wantErr: longmap.ErrInvalidInput},
		{size: 0, wantErr: longmap.ErrRegionTooSmall},
		{size: 23, wantErr: longmap.ErrRegionTooSmall},
		{size: 24, wantErr: longmap.ErrRegionTooSmall},
		{size: 95, wantErr: longmap.ErrRegionTooSmall},
		{size: 1 << 50, wantErr: longmap.ErrInvalidInput},
	}

	for _, tt := range tests {
		_, err := longmap.Layout(tt.size)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Layout(%d) error = %v, want %v", tt.size, err, tt.wantErr)
		}
	}
}

func Test_RequiredSize_Yields_Requested_Capacity_When_Passed_To_Layout(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int64{1, 2, 13, 1000, 1 << 20} {
		size := longmap.RequiredSize(capacity)

		geo, err := longmap.Layout(size)
		if err != nil {
			t.Fatalf("Layout(RequiredSize(%d)) error: %v", capacity, err)
		}

		if geo.IndexedCapacity != capacity {
			t.Fatalf("Layout(RequiredSize(%d)).IndexedCapacity = %d", capacity, geo.IndexedCapacity)
		}

		if geo.OverflowEnd != size {
			t.Fatalf("RequiredSize(%d) = %d leaves %d unused bytes", capacity, size, size-geo.OverflowEnd)
		}
	}

	for _, capacity := range []int64{0, -1, 256204778801521651, math.MaxInt64} {
		if got := longmap.RequiredSize(capacity); got != 0 {
			t.Fatalf("RequiredSize(%d) = %d, want 0", capacity, got)
		}
	}
}

// Deterministic tests comparing longmap against an in-memory reference model.
// Uses seeded PRNG for reproducible operation sequences across several
// capacities and key distributions.
//
// Failures mean: Put, Get or Size disagreed with the model, including on
// when the overflow zone runs out.

package longmap_test

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/dkrasilov/vk-test/pkg/longmap"
)

// refModel mirrors the observable behavior of a map with a given capacity.
type refModel struct {
	capacity int64
	values   map[int64]int64
	slotUsed map[int64]bool
	claims   int64 // includes failed claims
}

func newRefModel(capacity int64) *refModel {
	return &refModel{
		capacity: capacity,
		values:   make(map[int64]int64),
		slotUsed: make(map[int64]bool),
	}
}

func (r *refModel) slot(key int64) int64 {
	s := key % r.capacity
	if s < 0 {
		s += r.capacity
	}

	return s
}

func (r *refModel) put(key, value int64) (int64, error) {
	if prev, ok := r.values[key]; ok {
		r.values[key] = value

		return prev, nil
	}

	slot := r.slot(key)
	if !r.slotUsed[slot] {
		r.slotUsed[slot] = true
		r.values[key] = value

		return 0, nil
	}

	r.claims++
	if r.claims > 2*r.capacity {
		return 0, longmap.ErrFull
	}

	r.values[key] = value

	return 0, nil
}

func (r *refModel) get(key int64) int64 {
	return r.values[key]
}

func (r *refModel) size() int64 {
	return int64(len(r.values))
}

// keyGen draws keys for one profile.
type keyGen func(rng *rand.Rand, capacity int64) int64

type modelProfile struct {
	name     string
	capacity int64
	keys     keyGen
}

var modelProfiles = []modelProfile{
	{"Capacity1_SmallKeys", 1, smallKeys},
	{"Capacity3_SmallKeys", 3, smallKeys},
	{"Capacity13_SmallKeys", 13, smallKeys},
	{"Capacity13_Colliding", 13, collidingKeys},
	{"Capacity64_AnyKeys", 64, anyKeys},
	{"Capacity64_NegativeKeys", 64, negativeKeys},
}

func smallKeys(rng *rand.Rand, capacity int64) int64 {
	return rng.Int64N(capacity * 5)
}

func collidingKeys(rng *rand.Rand, capacity int64) int64 {
	return rng.Int64N(3) + capacity*rng.Int64N(40)
}

func anyKeys(rng *rand.Rand, _ int64) int64 {
	return int64(rng.Uint64())
}

func negativeKeys(rng *rand.Rand, capacity int64) int64 {
	return -rng.Int64N(capacity * 4)
}

func Test_Map_Matches_Model_When_Seeded_Random_Ops_Applied(t *testing.T) {
	t.Parallel()

	seedsPerProfile := 10
	opsPerSeed := 2000

	if testing.Short() {
		seedsPerProfile = 2
		opsPerSeed = 500
	}

	for _, profile := range modelProfiles {
		for seedIndex := range seedsPerProfile {
			seed := uint64(seedIndex + 1)

			t.Run(fmt.Sprintf("%s/seed=%d", profile.name, seed), func(t *testing.T) {
				t.Parallel()

				rng := rand.New(rand.NewPCG(seed, seed))
				m := newMapWithCapacity(t, profile.capacity)
				ref := newRefModel(profile.capacity)

				var seen []int64

				for op := range opsPerSeed {
					switch rng.IntN(10) {
					case 0, 1, 2, 3, 4, 5:
						key := profile.keys(rng, profile.capacity)
						if len(seen) > 0 && rng.IntN(4) == 0 {
							key = seen[rng.IntN(len(seen))]
						}

						value := rng.Int64()

						got, gotErr := m.Put(key, value)
						want, wantErr := ref.put(key, value)

						if !errors.Is(gotErr, wantErr) {
							t.Fatalf("op %d: Put(%d) error = %v, want %v", op, key, gotErr, wantErr)
						}

						if got != want {
							t.Fatalf("op %d: Put(%d) = %d, want %d", op, key, got, want)
						}

						if gotErr == nil {
							seen = append(seen, key)
						}

					case 6, 7, 8:
						key := profile.keys(rng, profile.capacity)
						if len(seen) > 0 && rng.IntN(2) == 0 {
							key = seen[rng.IntN(len(seen))]
						}

						if got, want := m.Get(key), ref.get(key); got != want {
							t.Fatalf("op %d: Get(%d) = %d, want %d", op, key, got, want)
						}

					default:
						if got, want := m.Size(), ref.size(); got != want {
							t.Fatalf("op %d: Size() = %d, want %d", op, got, want)
						}
					}
				}

				for key, want := range ref.values {
					if got := m.Get(key); got != want {
						t.Fatalf("final: Get(%d) = %d, want %d", key, got, want)
					}
				}

				if err := m.Check(); err != nil {
					t.Fatalf("final: Check() = %v", err)
				}
			})
		}
	}
}

package longmap_test

import (
	"testing"

	"github.com/dkrasilov/vk-test/pkg/longmap"
)

func BenchmarkPut(b *testing.B) {
	const capacity = 1 << 20

	size := longmap.RequiredSize(capacity)
	arena := longmap.NewArena(make([]byte, size))

	m, err := longmap.New(arena, size)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()

	var key int64

	for b.Loop() {
		// Keys below capacity only ever overwrite.
		if _, err := m.Put(key%capacity, key); err != nil {
			b.Fatal(err)
		}

		key++
	}
}

func BenchmarkGet_Chained(b *testing.B) {
	const capacity = 1 << 10

	size := longmap.RequiredSize(capacity)

	m, err := longmap.New(longmap.NewArena(make([]byte, size)), size)
	if err != nil {
		b.Fatal(err)
	}

	// Every slot holds a chain of three.
	for k := range int64(3 * capacity) {
		if _, err := m.Put(k, k); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()

	var key int64

	for b.Loop() {
		_ = m.Get(key % (3 * capacity))
		key++
	}
}

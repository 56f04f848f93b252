// Package shmap shares a longmap between processes through a memory-mapped
// file.
//
// Every operation takes an advisory flock on "<path>.lock": exclusive for
// [Map.Put] and [Map.Restore], shared for reads. Within one process a
// [Map] additionally serializes its own goroutines with a sync.RWMutex, so a
// single handle is safe for concurrent use.
//
// Basic usage:
//
//	m, err := shmap.Open(ctx, shmap.Options{Path: "/dev/shm/ids.map", Size: 64 << 20})
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	prev, err := m.Put(ctx, 42, 7)
//	v, err := m.Get(ctx, 42)
//
// Snapshots are zstd-compressed images of the whole region and can be
// restored into a map of the same region size.
package shmap

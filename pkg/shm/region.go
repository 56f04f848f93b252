package shm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// AccessPattern is a hint to the kernel about how a region will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
	// AccessWillNeed expects data to be accessed in the near future.
	AccessWillNeed
	// AccessDontNeed expects data to not be accessed in the near future.
	AccessDontNeed
)

// Region is a mapped block of memory.
type Region struct {
	data    []byte
	file    *os.File // nil for anonymous regions
	path    string
	created bool
	closed  atomic.Bool
}

// Anonymous maps size bytes of private, zero-filled memory.
func Anonymous(size int64) (*Region, error) {
	n, err := mappableSize(size)
	if err != nil {
		return nil, err
	}

	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap anonymous %d bytes: %w", n, err)
	}

	return &Region{data: data, created: true}, nil
}

// OpenFile maps the file at path read-write and shared. When size is
// positive the file is created if it does not exist.
//
// A new or empty file is extended to size bytes (sparse) and reported by
// [Region.Created]. An existing file must be exactly size bytes long, or
// size must be 0 to map the file at its current length. With size 0 a
// missing file is an error wrapping [os.ErrNotExist] and nothing is created.
func OpenFile(path string, size int64) (*Region, error) {
	if size < 0 {
		return nil, fmt.Errorf("size %d is negative: %w", size, ErrInvalidSize)
	}

	flag := os.O_RDWR
	if size > 0 {
		flag |= os.O_CREATE
	}

	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	region, err := mapFile(file, size)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	region.path = path

	return region, nil
}

func mapFile(file *os.File, size int64) (*Region, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", file.Name(), err)
	}

	created := false

	switch {
	case info.Size() == 0:
		if size == 0 {
			return nil, fmt.Errorf("%s is empty and no size was given: %w", file.Name(), ErrInvalidSize)
		}

		// Sparse; untouched pages read as zero.
		if err := file.Truncate(size); err != nil {
			return nil, fmt.Errorf("truncate %s to %d: %w", file.Name(), size, err)
		}

		created = true
	case size == 0:
		size = info.Size()
	case info.Size() != size:
		return nil, fmt.Errorf("%s is %d bytes, want %d: %w", file.Name(), info.Size(), size, ErrSizeMismatch)
	}

	n, err := mappableSize(size)
	if err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(file.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", file.Name(), err)
	}

	return &Region{data: data, file: file, created: created}, nil
}

// Bytes returns the mapped memory, or nil after Close.
//
// The slice is valid only until Close; touching it afterwards faults.
func (r *Region) Bytes() []byte {
	if r.closed.Load() {
		return nil
	}

	return r.data
}

// Len returns the region length in bytes.
func (r *Region) Len() int64 {
	return int64(len(r.data))
}

// Path returns the backing file path, or "" for an anonymous region.
func (r *Region) Path() string {
	return r.path
}

// Created reports whether the region was zero-filled by this call: always for
// anonymous regions, and for files that were new or empty.
func (r *Region) Created() bool {
	return r.created
}

// Sync flushes dirty pages of a file-backed region to disk and waits for the
// write. It is a no-op for anonymous regions.
func (r *Region) Sync() error {
	if r.closed.Load() {
		return ErrClosed
	}

	if r.file == nil || len(r.data) == 0 {
		return nil
	}

	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", r.path, err)
	}

	return nil
}

// Advise passes an access pattern hint to the kernel.
func (r *Region) Advise(pattern AccessPattern) error {
	if r.closed.Load() {
		return ErrClosed
	}

	if len(r.data) == 0 {
		return nil
	}

	var advice int

	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}

	err := unix.Madvise(r.data, advice)
	if errors.Is(err, unix.EINVAL) {
		// Advisory only; some kernels reject hints on odd mappings.
		return nil
	}

	if err != nil {
		return fmt.Errorf("madvise: %w", err)
	}

	return nil
}

// Close unmaps the region and closes the backing file. It is idempotent.
func (r *Region) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	var errs []error

	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			errs = append(errs, fmt.Errorf("munmap: %w", err))
		}
	}

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", r.path, err))
		}
	}

	return errors.Join(errs...)
}

// mappableSize validates size for mmap, whose length is an int.
func mappableSize(size int64) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("size %d is not positive: %w", size, ErrInvalidSize)
	}

	if size > math.MaxInt {
		return 0, fmt.Errorf("size %d exceeds max int: %w", size, ErrInvalidSize)
	}

	return int(size), nil
}

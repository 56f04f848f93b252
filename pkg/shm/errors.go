package shm

import "errors"

var (
	// ErrClosed is returned when using a region after Close.
	ErrClosed = errors.New("shm: region is closed")

	// ErrInvalidSize is returned for a non-positive size, a size that does not
	// fit in an int, or a file whose length cannot be mapped.
	ErrInvalidSize = errors.New("shm: invalid size")

	// ErrSizeMismatch is returned by [OpenFile] when an existing file's length
	// differs from the requested size.
	//
	// Recovery: pass size 0 to map the file at its current length, or remove
	// the file to recreate it.
	ErrSizeMismatch = errors.New("shm: size mismatch")
)

package shmap

import "errors"

var (
	// ErrInvalidInput indicates invalid options, such as an empty path.
	ErrInvalidInput = errors.New("shmap: invalid input")

	// ErrBusy indicates the region lock could not be acquired before the lock
	// timeout or the context expired.
	//
	// Recovery: retry later, or raise Options.LockTimeout.
	ErrBusy = errors.New("shmap: busy")

	// ErrClosed is returned when using a Map after Close.
	ErrClosed = errors.New("shmap: closed")

	// ErrSnapshotInvalid indicates a snapshot file that is truncated, corrupt,
	// from an unknown format version, or made from a region of another size.
	ErrSnapshotInvalid = errors.New("shmap: invalid snapshot")
)

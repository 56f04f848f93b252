package longmap

import (
	"encoding/binary"
	"fmt"
)

// Memory is the word-addressable region a [Map] lives in.
//
// Offsets are byte offsets from the start of the region. Implementations
// decide what happens on an out-of-range access; [Arena] panics.
type Memory interface {
	// ReadWord returns the 8-byte word at off.
	ReadWord(off int64) int64
	// WriteWord stores v as the 8-byte word at off.
	WriteWord(off int64, v int64)
	// Len returns the region length in bytes.
	Len() int64
}

// Arena is a [Memory] backed by a byte slice.
//
// Words are stored in the host's native byte order, so a region is only
// portable between processes on the same architecture. The slice may be a
// plain allocation or a memory mapping.
type Arena struct {
	buf []byte
}

// NewArena returns an arena over buf. The arena aliases buf; it does not copy.
func NewArena(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// ReadWord implements [Memory]. It panics with an error wrapping
// [ErrOutOfBounds] if the word does not fit in the buffer.
func (a *Arena) ReadWord(off int64) int64 {
	a.check(off)

	return int64(binary.NativeEndian.Uint64(a.buf[off : off+wordSize]))
}

// WriteWord implements [Memory]. It panics with an error wrapping
// [ErrOutOfBounds] if the word does not fit in the buffer.
func (a *Arena) WriteWord(off int64, v int64) {
	a.check(off)

	binary.NativeEndian.PutUint64(a.buf[off:off+wordSize], uint64(v))
}

// Len implements [Memory].
func (a *Arena) Len() int64 {
	return int64(len(a.buf))
}

// Bytes returns the backing slice.
func (a *Arena) Bytes() []byte {
	return a.buf
}

func (a *Arena) check(off int64) {
	if off < 0 || off > int64(len(a.buf))-wordSize {
		panic(fmt.Errorf("word at offset %d, arena length %d: %w", off, len(a.buf), ErrOutOfBounds))
	}
}

// Package testutil holds helpers shared by fuzz tests.
package testutil

import "encoding/binary"

// ByteStream reads values sequentially from a byte slice.
//
// Used by fuzz tests to deterministically derive operations from fuzz input.
// When the stream is exhausted, all reads return zero values, so the same
// input always produces the same sequence of operations.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over the given bytes.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// Remaining returns the number of unread bytes.
func (s *ByteStream) Remaining() int {
	return len(s.bytes) - s.pos
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// NextBytes reads n bytes, padding with zeros if exhausted.
func (s *ByteStream) NextBytes(n int) []byte {
	if n <= 0 {
		return []byte{}
	}

	out := make([]byte, n)
	for i := range n {
		out[i] = s.NextByte()
	}

	return out
}

// NextInt returns a non-negative int below maxVal derived from the next byte.
func (s *ByteStream) NextInt(maxVal int) int {
	if maxVal <= 0 {
		return 0
	}

	return int(s.NextByte()) % maxVal
}

// NextBool returns a boolean derived from the next byte.
func (s *ByteStream) NextBool() bool {
	return s.NextByte()&1 == 1
}

// NextInt64 returns the next 8 bytes as a little-endian int64, zero-padded
// if exhausted.
func (s *ByteStream) NextInt64() int64 {
	return int64(binary.LittleEndian.Uint64(s.NextBytes(8)))
}

// NextSmallInt64 returns a value in [-128, 127] from one byte. Small keys
// collide often, which is what map fuzzing wants.
func (s *ByteStream) NextSmallInt64() int64 {
	return int64(int8(s.NextByte()))
}

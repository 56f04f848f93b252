package longmap

import "errors"

// Sentinel errors returned by longmap operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, longmap.ErrFull) {
//	    // recreate the region with a larger size
//	}
var (
	// ErrRegionTooSmall indicates the region cannot hold the header plus at
	// least one indexed slot and its overflow records.
	//
	// This is a configuration error.
	ErrRegionTooSmall = errors.New("longmap: region too small")

	// ErrInvalidInput indicates invalid arguments were provided, such as a
	// nil memory, a negative size, or a size larger than the memory.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("longmap: invalid input")

	// ErrFull indicates the overflow zone has been exhausted.
	//
	// The failing insert is not applied. The overflow cursor has already moved
	// past the end of the zone, so every later insert that needs a new chain
	// record fails the same way. Keys inserted before the failure stay
	// readable and overwrites of existing keys still succeed.
	//
	// Recovery: recreate the map in a larger region.
	ErrFull = errors.New("longmap: full")

	// ErrCorrupt indicates the region does not hold a consistent map: the
	// header fails validation on [Attach], or a collision chain points outside
	// the overflow zone or is longer than the zone itself.
	ErrCorrupt = errors.New("longmap: corrupt")

	// ErrOutOfBounds indicates a word access outside the backing buffer.
	//
	// [Arena] panics with an error wrapping ErrOutOfBounds; a correct map
	// never triggers it.
	ErrOutOfBounds = errors.New("longmap: out of bounds")
)

package longmap

// Implementation limits.
//
// Every size and offset is an int64 byte count. The limits keep offset
// arithmetic (base + index*recordSize) away from int64 overflow and keep
// every overflow index inside the 62-bit meta index field.
const (
	// Maximum allowed region size in bytes.
	maxRegionSize = int64(1) << 46 // 64 TiB

	// Maximum number of indexed slots a region of maxRegionSize can hold.
	maxIndexedCapacity = (maxRegionSize - headerSize) / ((1 + overflowMultiplier) * recordSize)
)

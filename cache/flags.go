package cache

// Flags are allocation-time flags recognized by Alloc/Zalloc and forwarded
// to the page allocator, with FlagZero cleared, when a slow path has to grow
// a cache.
type Flags uint32

const (
	// FlagZero zero-fills the returned object up to ObjectSize bytes.
	FlagZero Flags = 1 << iota
	// FlagWait permits the underlying page allocator to block.
	FlagWait
)

// CreateFlags are cache-creation-time flags recognized by CacheCreate.
type CreateFlags uint32

const (
	// FlagHWCacheAlign widens the slot alignment to CacheLineSize.
	FlagHWCacheAlign CreateFlags = 1 << iota
)

// CacheLineSize is the alignment FlagHWCacheAlign widens to. 64 bytes covers
// the common case across the architectures this allocator is likely to run
// on; a platform with a different line size can still request a larger
// explicit align without this flag.
const CacheLineSize = 64

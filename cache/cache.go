package cache

import (
	"fmt"

	"github.com/inos-labs/slabcache/diag"
	"github.com/sony/gobreaker/v2"
)

const wordSize = 4 // size of the free-chain pointer this allocator threads through free slots

// Cache is a named, typed pool of equally sized, equally aligned objects:
// the unit callers allocate from and free back to.
type Cache struct {
	name       string
	objectSize uint32
	size       uint32 // ALIGN(objectSize, align); the actual slot size
	align      uint32
	offset     uint32 // byte offset of the free-chain pointer within a slot
	flags      CreateFlags
	oo         orderObjects

	// active is the page-table index of the slab currently being served
	// from directly, or noLink if there is none. freelist caches that
	// slab's head so the fast path never has to dereference the slab
	// descriptor at all.
	active   uint32
	freelist Addr

	partial *slabList
	full    *slabList

	pa      PageAllocator
	pt      *pageTable
	diag    *diag.Sink
	breaker *gobreaker.CircuitBreaker[Addr]
}

// Name reports the cache's identifying label.
func (c *Cache) Name() string { return c.name }

// ObjectSize reports the size callers requested (not the padded slot size).
func (c *Cache) ObjectSize() uint32 { return c.objectSize }

// ObjectsPerSlab reports how many objects a single slab of this cache holds.
func (c *Cache) ObjectsPerSlab() uint32 { return c.oo.objects() }

// NrPartial reports the number of slabs on the partial list, kept exactly
// equal to len(partial) by construction rather than tracked separately.
func (c *Cache) NrPartial() int { return c.partial.len }

// hasActive reports whether the cache currently has an active slab.
func (c *Cache) hasActive() bool { return c.active != noLink }

// calculateSizes computes the padded slot size and the order/objects
// encoding for a cache, clamping the slot size up to at least a
// free-chain-pointer's width. The spec flags the source's failure to do
// this clamp as a bug to fix rather than reproduce: a slot smaller than
// wordSize can't hold the free-chain pointer without corrupting adjacent
// slots.
func calculateSizes(objectSize, align uint32) (size uint32, oo orderObjects, order uint8, ok bool) {
	size = align_(objectSize, align)
	if size < wordSize {
		size = align_(wordSize, align)
	}

	order = chooseOrder(size)
	oo = makeOrderObjects(order, size)
	return size, oo, order, oo.objects() != 0
}

// chooseOrder picks the smallest slab order that packs at least
// minObjectsPerSlab objects, up to maxOrder. The source this allocator is
// based on left this as a stub always returning 0; the spec calls that out
// as a design freedom rather than a contract, so this implementation
// targets a useful objects-per-slab range instead of hard-coding order 0.
const (
	minObjectsPerSlab = 16
	maxOrder          = 3
)

func chooseOrder(size uint32) uint8 {
	for order := uint8(0); order < maxOrder; order++ {
		if (uint32(pageSize)<<order)/size >= minObjectsPerSlab {
			return order
		}
	}
	return maxOrder
}

// align_ rounds n up to the next multiple of a, which must be a power of
// two. Named with a trailing underscore to avoid shadowing the align field
// used throughout this package.
func align_(n, a uint32) uint32 {
	return (n + a - 1) &^ (a - 1)
}

// initCache populates a zero-valued Cache descriptor in place: the
// __slab_cache_create half of creation, which does not itself allocate
// anything (the descriptor already exists, wherever it came from).
func initCache(c *Cache, pa PageAllocator, pt *pageTable, d *diag.Sink, name string, objectSize, align uint32, flags CreateFlags) error {
	if align < wordSize {
		align = wordSize
	}
	if flags&FlagHWCacheAlign != 0 && align < CacheLineSize {
		align = CacheLineSize
	}

	size, oo, _, ok := calculateSizes(objectSize, align)
	if !ok {
		return fmt.Errorf("cache: geometry invalid for %q (object_size=%d align=%d): no slab order fits even one object", name, objectSize, align)
	}

	c.name = name
	c.objectSize = objectSize
	c.align = align
	c.size = size
	c.offset = 0
	c.flags = flags
	c.oo = oo
	c.active = noLink
	c.freelist = NullAddr
	c.partial = newSlabList(pt)
	c.full = newSlabList(pt)
	c.pa = pa
	c.pt = pt
	c.diag = d
	c.breaker = newGrowthBreaker(name)
	return nil
}

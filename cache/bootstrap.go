package cache

import (
	"errors"
	"fmt"

	"github.com/inos-labs/slabcache/diag"
)

// metaCacheSlotSize is the nominal size of a slot in the meta-cache. A
// Cache descriptor here is never stored as raw bytes in the arena (it holds
// Go pointers and interfaces that can't live in a byte buffer); the arena
// slot exists purely to give each descriptor an address, the same way a
// pageDescriptor exists in a side table rather than inside the page it
// describes. descriptors maps that address to the live *Cache.
const metaCacheSlotSize = 16

// Allocator is the top-level handle on a slab allocator instance: one page
// allocator, one page table, and the meta-cache that hands out cache
// descriptors to everything else, including itself.
type Allocator struct {
	pa   PageAllocator
	pt   *pageTable
	diag *diag.Sink

	boot Cache // static bootstrap seed; unreferenced once Init returns
	meta *Cache

	descriptors map[Addr]*Cache
	handles     map[*Cache]Addr
}

// Init performs the two-phase meta-cache bootstrap: a statically seeded
// descriptor creates the very first slab, then a real descriptor is
// allocated from that slab and the seed's state is copied into it. After
// Init returns, every cache descriptor -- including the meta-cache's own --
// lives in a slab the meta-cache manages.
func Init(pa PageAllocator, d *diag.Sink) (*Allocator, error) {
	pt := newPageTable(0, uint32(len(pa.Arena())))
	a := &Allocator{
		pa:          pa,
		pt:          pt,
		diag:        d,
		descriptors: make(map[Addr]*Cache),
		handles:     make(map[*Cache]Addr),
	}

	// Phase 1: static seed. boot needs no descriptor allocation -- it's
	// already provided as a field on a.
	if err := initCache(&a.boot, pa, pt, d, "slab_cache", metaCacheSlotSize, wordSize, 0); err != nil {
		return nil, fmt.Errorf("allocator: bootstrap meta-cache: %w", err)
	}
	a.meta = &a.boot

	// Phase 2: re-home. Allocate S from boot (itself), byte-copy boot's
	// state into S, fix up the slab S was just allocated from to point at
	// S rather than at boot, and give S fresh (empty) list heads since
	// boot's pointed into boot's own storage.
	sAddr, ok := Alloc(a.meta, FlagZero)
	if !ok {
		return nil, errors.New("allocator: bootstrap could not allocate the re-homed meta-cache descriptor")
	}

	s := new(Cache)
	*s = a.boot
	if s.hasActive() {
		a.pt.pages[s.active].owner = s
	}
	s.partial = newSlabList(a.pt)
	s.full = newSlabList(a.pt)

	a.meta = s
	a.descriptors[sAddr] = s
	a.handles[s] = sAddr
	return a, nil
}

// Meta returns the meta-cache's own descriptor, the one S6 requires to
// satisfy page_of(meta).slab_cache == meta.
func (a *Allocator) Meta() *Cache { return a.meta }

// CacheCreate allocates a cache descriptor from the meta-cache and
// initializes it as a pool of objectSize-byte, align-aligned objects.
func (a *Allocator) CacheCreate(name string, objectSize, align uint32, flags CreateFlags) (*Cache, error) {
	descAddr, ok := Alloc(a.meta, FlagZero)
	if !ok {
		return nil, fmt.Errorf("cache: meta-cache exhausted creating %q", name)
	}

	c := &Cache{}
	if err := initCache(c, a.pa, a.pt, a.diag, name, objectSize, align, flags); err != nil {
		Free(a.meta, descAddr)
		return nil, err
	}

	a.descriptors[descAddr] = c
	a.handles[c] = descAddr
	return c, nil
}

// CacheDestroy tears c down: any active slab is discarded (warning first if
// it still has live objects, rather than dereferencing a descriptor that
// may not have an active slab at all), outstanding partial/full slabs are
// flagged rather than silently dropped, and c's own descriptor is returned
// to the meta-cache.
func (a *Allocator) CacheDestroy(c *Cache) {
	if c.hasActive() {
		page := &a.pt.pages[c.active]
		if page.inuse > 0 {
			a.diag.Warn("cache destroyed with outstanding allocations", "destroy-leak:"+c.name,
				diag.String("cache", c.name), diag.Uint32("inuse", page.inuse))
		}
		discardSlab(c, a.pt.addressOf(c.active), page.order)
		c.active = noLink
	}

	if !c.partial.empty() {
		a.diag.Warn("cache destroyed with partial slabs outstanding", "destroy-leak:"+c.name,
			diag.String("cache", c.name))
	}
	if !c.full.empty() {
		a.diag.Warn("cache destroyed with full slabs outstanding", "destroy-leak:"+c.name,
			diag.String("cache", c.name))
	}

	if addr, ok := a.handles[c]; ok {
		Free(a.meta, addr)
		delete(a.descriptors, addr)
		delete(a.handles, c)
	}
}

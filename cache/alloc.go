package cache

import "github.com/inos-labs/slabcache/diag"

// Alloc draws one object from c. The fast path consults the cached
// freelist directly; if it's empty, allocSlow promotes the exhausted
// active slab, reuses a partial slab, or grows the cache by a new slab.
func Alloc(c *Cache, flags Flags) (Addr, bool) {
	obj := c.freelist
	if obj == NullAddr {
		o, ok := allocSlow(c, flags)
		if !ok {
			return 0, false
		}
		obj = o
	}

	// Open Question flagged in the spec: the reference source advances
	// s->freelist via get_freepointer(object) even when the slow path
	// returned null, which would dereference a null object. Guarding here
	// (obj != NullAddr is guaranteed by the early return above) is the fix
	// the spec calls for rather than reproducing the bug.
	c.freelist = getFreepointer(c, obj)
	c.pt.pages[c.active].inuse++

	if flags&FlagZero != 0 {
		zero(c.pa.Arena(), obj, Addr(c.objectSize))
	}
	return obj, true
}

// Zalloc is Alloc with zero-fill forced on.
func Zalloc(c *Cache, flags Flags) (Addr, bool) {
	return Alloc(c, flags|FlagZero)
}

// allocSlow handles an exhausted fast-path freelist: promote the current
// active slab to the full list, try the partial list, and failing that
// grow the cache by asking the page allocator (through the circuit
// breaker) for a fresh slab.
func allocSlow(c *Cache, flags Flags) (Addr, bool) {
	if c.hasActive() {
		page := &c.pt.pages[c.active]
		page.freelist = NullAddr // I6: only c.freelist is authoritative while active
		c.full.pushBack(c.active)
		c.active = noLink
	}

	// get_partial: by invariant I5 every slab on the partial list has a
	// non-null freelist, so the first one found is immediately usable.
	if idx, ok := c.partial.first(); ok {
		c.partial.remove(idx)
		c.active = idx
		return c.pt.pages[idx].freelist, true
	}

	base, ok := growCache(c, flags)
	if !ok {
		c.diag.Warn("page allocator out of memory", "oom:"+c.name,
			diag.String("cache", c.name), diag.Uint32("object_size", c.objectSize))
		return 0, false
	}
	c.active = c.pt.indexOf(base)
	return c.pt.pages[c.active].freelist, true
}

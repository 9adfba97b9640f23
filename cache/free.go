package cache

import "github.com/inos-labs/slabcache/diag"

// Free returns obj to whichever cache actually owns it, resolved by
// address through the page table. cArg is advisory: if the caller got the
// cache wrong, Free warns and proceeds against the true owner rather than
// corrupting it.
func Free(cArg *Cache, obj Addr) {
	headIdx, ok := cArg.pt.headIndexOf(obj)
	if !ok {
		cArg.diag.Error("free of address not owned by any slab", diag.Uint32("addr", uint32(obj)))
		return
	}

	page := &cArg.pt.pages[headIdx]
	c := page.owner
	if c != cArg {
		cArg.diag.Warn("free called against the wrong cache", "misattributed-free:"+cArg.name,
			diag.String("supplied_cache", cArg.name), diag.String("actual_cache", c.name))
	}

	if headIdx == c.active {
		// Fast path: obj belongs to the currently active slab.
		setFreepointer(c, obj, c.freelist)
		c.freelist = obj
		page.inuse--
		return
	}

	freeSlow(c, headIdx, page, obj)
}

// freeSlow returns obj to a slab sitting on the full or partial list
// (never the active slab — that's the fast path in Free).
func freeSlow(c *Cache, headIdx uint32, page *pageDescriptor, obj Addr) {
	prior := page.freelist
	setFreepointer(c, obj, prior)
	page.freelist = obj
	page.inuse--

	if prior == NullAddr {
		// Slab was full: full -> partial.
		c.full.remove(headIdx)
		c.partial.pushFront(headIdx)
		return
	}

	// Slab was already partial. Reclaim it if it just went empty and the
	// cache is holding more partial slabs than the retention threshold.
	if page.inuse == 0 && c.NrPartial() > slabCacheMinPartial {
		c.partial.remove(headIdx)
		discardSlab(c, c.pt.addressOf(headIdx), page.order)
	}
}

// slabCacheMinPartial is the number of partial slabs a cache retains as a
// reserve before empties are returned to the page allocator.
const slabCacheMinPartial = 3

package cache

// getFreepointer and setFreepointer read/write the next-free-slot pointer
// embedded at c.offset bytes into a free slot. The slot is only ever read
// this way while it is free; once handed to a caller the same bytes become
// the caller's payload.
func getFreepointer(c *Cache, obj Addr) Addr {
	return readWord(c.pa.Arena(), obj+Addr(c.offset))
}

func setFreepointer(c *Cache, obj, next Addr) {
	writeWord(c.pa.Arena(), obj+Addr(c.offset), next)
}

// allocateSlab draws 2^order fresh pages from the page allocator and
// threads a free chain through every object slot in ascending address
// order, slot 0 -> slot 1 -> ... -> slot N-1 -> null. It does not place the
// new slab on any list; the caller (the allocation slow path) decides
// whether it becomes the active slab.
func allocateSlab(c *Cache, flags Flags) (Addr, bool) {
	order := c.oo.order()
	base, ok := c.pa.AllocPages(flags&^FlagZero, order)
	if !ok {
		return 0, false
	}

	page := c.pt.setSlab(base, order, c)

	n := c.oo.objects()
	arena := c.pa.Arena()
	for i := uint32(0); i < n; i++ {
		slot := base + Addr(i)*Addr(c.size)
		var next Addr
		if i == n-1 {
			next = NullAddr
		} else {
			next = slot + Addr(c.size)
		}
		writeWord(arena, slot+Addr(c.offset), next)
	}
	page.freelist = base
	page.inuse = 0
	return base, true
}

// discardSlab returns an empty slab's pages to the page allocator.
// Precondition: the slab is not on any list and inuse == 0.
func discardSlab(c *Cache, headAddr Addr, order uint8) {
	c.pt.clearSlab(headAddr, order)
	c.pa.FreePages(headAddr, order)
}

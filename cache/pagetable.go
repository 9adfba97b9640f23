package cache

// pageDescriptor is the per-page metadata the slab allocator fuses its slab
// state onto, the way the design notes describe: rather than carrying a
// separate struct at a fixed offset inside each slab, every page in the
// arena gets one descriptor in a flat side table, and the descriptor for a
// slab's first page carries the live state (freelist, inuse, owning
// cache, list links). The remaining pages of a multi-page slab just point
// back at the head so that address -> page -> cache stays O(1) regardless
// of which page inside the run an object falls in.
type pageDescriptor struct {
	slabOwned bool // set_page_slab / clear_page_slab
	isHead    bool
	headIndex uint32

	// Valid only when isHead is true.
	owner    *Cache
	freelist Addr
	inuse    uint32
	order    uint8

	// Slab list membership (partial or full); indices into pageTable.pages,
	// or noLink when unlinked (the active slab is always unlinked).
	listPrev, listNext uint32
}

const noLink = ^uint32(0)

// pageTable maps arena addresses to page descriptors in O(1), the role the
// spec assigns to the external "page-descriptor infrastructure": an
// address -> page descriptor lookup plus per-page flags.
type pageTable struct {
	base  Addr
	pages []pageDescriptor
}

func newPageTable(base Addr, arenaSize uint32) *pageTable {
	return &pageTable{
		base:  base,
		pages: make([]pageDescriptor, arenaSize/pageSize),
	}
}

func (pt *pageTable) indexOf(addr Addr) uint32 {
	return uint32(addr-pt.base) / pageSize
}

func (pt *pageTable) addressOf(index uint32) Addr {
	return pt.base + Addr(index)*pageSize
}

// pageOf resolves any address within a slab's page run to the descriptor
// carrying that slab's live state (the head page's descriptor). This is
// virt_to_page followed by the walk to wherever the fused descriptor lives.
func (pt *pageTable) pageOf(addr Addr) *pageDescriptor {
	idx, ok := pt.headIndexOf(addr)
	if !ok {
		return nil
	}
	return &pt.pages[idx]
}

// headIndexOf resolves addr to the page-table index of its slab's head
// descriptor (virt_to_page followed by the walk to the fused descriptor).
func (pt *pageTable) headIndexOf(addr Addr) (uint32, bool) {
	idx := pt.indexOf(addr)
	if idx >= uint32(len(pt.pages)) {
		return 0, false
	}
	p := &pt.pages[idx]
	if !p.slabOwned {
		return 0, false
	}
	if p.isHead {
		return idx, true
	}
	return p.headIndex, true
}

// setSlab marks the 2^order pages starting at headAddr as slab-owned and
// initializes the head descriptor. Equivalent to set_page_slab plus the
// page_cache/inuse/freelist population allocate_slab performs.
func (pt *pageTable) setSlab(headAddr Addr, order uint8, owner *Cache) *pageDescriptor {
	headIdx := pt.indexOf(headAddr)
	n := uint32(1) << order
	for i := uint32(0); i < n; i++ {
		p := &pt.pages[headIdx+i]
		p.slabOwned = true
		p.isHead = i == 0
		p.headIndex = headIdx
	}
	head := &pt.pages[headIdx]
	head.owner = owner
	head.order = order
	head.inuse = 0
	head.freelist = NullAddr
	head.listPrev, head.listNext = noLink, noLink
	return head
}

// clearSlab undoes setSlab: clear_page_slab plus wiping the fused
// descriptor so a reused page run never leaks the previous slab's state.
func (pt *pageTable) clearSlab(headAddr Addr, order uint8) {
	headIdx := pt.indexOf(headAddr)
	n := uint32(1) << order
	for i := uint32(0); i < n; i++ {
		pt.pages[headIdx+i] = pageDescriptor{}
	}
}

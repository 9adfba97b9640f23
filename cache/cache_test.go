package cache

import (
	"testing"

	"github.com/inos-labs/slabcache/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, arenaSize uint32) *Allocator {
	t.Helper()
	pa, err := NewArenaPageAllocator(arenaSize)
	require.NoError(t, err)
	a, err := Init(pa, diag.Default("test"))
	require.NoError(t, err)
	return a
}

// S1: single alloc/write/free/destroy round trip, no diagnostics, page
// returned to the page allocator on destroy.
func TestScenario_AllocFreeDestroy(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	c, err := a.CacheCreate("points", 8, 8, 0)
	require.NoError(t, err)

	p1, ok := Alloc(c, 0)
	require.True(t, ok)

	arena := c.pa.Arena()
	writeWord(arena, p1, 0x123456)

	Free(c, p1)
	a.CacheDestroy(c)

	idx := a.pt.indexOf(p1)
	assert.False(t, a.pt.pages[idx].slabOwned, "destroy must return the slab's pages to the page allocator")
}

// S2: a 14-byte record aligned to 8 rounds up to size 16. Allocating past
// one slab's capacity pulls a second slab, addresses stay 8-aligned and
// distinct, and the exhausted first slab sits on full.
func TestScenario_SecondSlabAcquisition(t *testing.T) {
	a := newTestAllocator(t, 256*1024)
	c, err := a.CacheCreate("records", 14, 8, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(16), c.size)

	perSlab := c.ObjectsPerSlab()
	seen := make(map[Addr]bool)

	for i := uint32(0); i < perSlab; i++ {
		p, ok := Alloc(c, 0)
		require.True(t, ok)
		assert.Zero(t, uint32(p)%8, "address must be 8-aligned")
		assert.False(t, seen[p], "addresses must be distinct")
		seen[p] = true
	}

	require.True(t, c.hasActive())
	assert.Equal(t, 0, c.full.len)

	// One more allocation finds the active slab's freelist exhausted and must
	// promote it to full before growing.
	p, ok := Alloc(c, 0)
	require.True(t, ok)
	assert.False(t, seen[p])
	assert.Equal(t, 1, c.full.len)
	assert.True(t, c.hasActive())
}

// S3: fill one slab, free every object in reverse order. The first free
// moves the slab full -> partial; since nr_partial (1) <= threshold (3),
// the slab is retained with inuse == 0 rather than discarded.
func TestScenario_FillThenDrainRetainsPartial(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	c, err := a.CacheCreate("drain", 32, 8, 0)
	require.NoError(t, err)

	n := c.ObjectsPerSlab()
	objs := make([]Addr, 0, n)
	for i := uint32(0); i < n; i++ {
		p, ok := Alloc(c, 0)
		require.True(t, ok)
		objs = append(objs, p)
	}
	// The exhausted slab stays active until the next Alloc moves it to full.
	_, ok := Alloc(c, 0)
	require.True(t, ok)
	require.Equal(t, 1, c.full.len)

	for i := len(objs) - 1; i >= 0; i-- {
		Free(c, objs[i])
	}

	assert.Equal(t, 0, c.full.len)
	assert.Equal(t, 1, c.NrPartial())
	headIdx, ok := c.partial.first()
	require.True(t, ok)
	assert.Equal(t, uint32(0), c.pt.pages[headIdx].inuse)
}

// S4: four full slabs, then draining one entirely discards it once
// nr_partial would exceed the retention threshold.
func TestScenario_PartialThresholdReclaim(t *testing.T) {
	a := newTestAllocator(t, 512*1024)
	c, err := a.CacheCreate("reclaim", 32, 8, 0)
	require.NoError(t, err)

	n := c.ObjectsPerSlab()
	var slabs [][]Addr
	for s := 0; s < 4; s++ {
		objs := make([]Addr, 0, n)
		for i := uint32(0); i < n; i++ {
			p, ok := Alloc(c, 0)
			require.True(t, ok)
			objs = append(objs, p)
		}
		slabs = append(slabs, objs)
	}
	// The fourth slab stays active until the next Alloc moves it to full.
	_, ok := Alloc(c, 0)
	require.True(t, ok)
	require.Equal(t, 4, c.full.len)

	// Drain three slabs into partial, bringing nr_partial to 3 (at the
	// retention threshold, so none of these are discarded).
	for s := 0; s < 3; s++ {
		for _, p := range slabs[s] {
			Free(c, p)
		}
	}
	require.Equal(t, 3, c.NrPartial())

	firstObj := slabs[3][0]
	headIdx, ok := c.pt.headIndexOf(firstObj)
	require.True(t, ok)

	// The fourth slab's first free moves it full -> partial, pushing
	// nr_partial to 4 (>3), so its last free discards it back to the page
	// allocator.
	for _, p := range slabs[3] {
		Free(c, p)
	}

	assert.Equal(t, 3, c.NrPartial())
	assert.False(t, c.pt.pages[headIdx].slabOwned, "fourth slab must be discarded once nr_partial exceeds the threshold")
}

// S5: a free against the wrong cache warns but still frees into the
// object's true owner, and a subsequent alloc on the true owner returns it
// (LIFO, P5).
func TestScenario_MisattributedFree(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	cA, err := a.CacheCreate("A", 16, 8, 0)
	require.NoError(t, err)
	cB, err := a.CacheCreate("B", 16, 8, 0)
	require.NoError(t, err)

	p, ok := Alloc(cA, 0)
	require.True(t, ok)

	Free(cB, p)

	q, ok := Alloc(cA, 0)
	require.True(t, ok)
	assert.Equal(t, p, q, "object misattributed to B must still come back from A's freelist")
}

// S6: after bootstrap, the meta-cache's own descriptor resolves back to
// itself through the page table.
func TestScenario_BootstrapSelfReference(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	meta := a.Meta()
	require.True(t, meta.hasActive(), "bootstrap must leave the meta-cache with an active slab")

	page := &a.pt.pages[meta.active]
	assert.Same(t, meta, page.owner)
}

// P5: LIFO reuse with no intervening operation.
func TestInvariant_LIFOReuse(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	c, err := a.CacheCreate("lifo", 24, 8, 0)
	require.NoError(t, err)

	p, ok := Alloc(c, 0)
	require.True(t, ok)
	Free(c, p)
	q, ok := Alloc(c, 0)
	require.True(t, ok)
	assert.Equal(t, p, q)
}

// P3: freelist == null iff inuse == objects_per_slab, checked at the
// moment a slab fills completely.
func TestInvariant_FreelistNullIffFull(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	c, err := a.CacheCreate("full", 64, 8, 0)
	require.NoError(t, err)

	n := c.ObjectsPerSlab()
	var last Addr
	for i := uint32(0); i < n; i++ {
		p, ok := Alloc(c, 0)
		require.True(t, ok)
		last = p
	}
	_ = last
	assert.Equal(t, NullAddr, c.freelist)
	assert.Equal(t, n, c.pt.pages[c.active].inuse)
}

func TestCacheCreate_GeometryInvalid(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	_, err := a.CacheCreate("huge", pageSize*100, 8, 0)
	assert.Error(t, err)
}

func TestZalloc_ZeroesObject(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	c, err := a.CacheCreate("zalloc", 32, 8, 0)
	require.NoError(t, err)

	p, ok := Alloc(c, 0)
	require.True(t, ok)
	arena := c.pa.Arena()
	for i := uint32(0); i < c.objectSize; i++ {
		arena[uint32(p)+i] = 0xAA
	}
	Free(c, p)

	q, ok := Zalloc(c, 0)
	require.True(t, ok)
	require.Equal(t, p, q)
	for i := uint32(0); i < c.objectSize; i++ {
		assert.Zero(t, arena[uint32(q)+i])
	}
}

func TestCacheDestroy_NoActiveSlab(t *testing.T) {
	a := newTestAllocator(t, 64*1024)
	c, err := a.CacheCreate("never-touched", 16, 8, 0)
	require.NoError(t, err)

	// Must not panic: the spec flags the reference source's unconditional
	// discard of the active slab as a bug when there never was one.
	assert.NotPanics(t, func() { a.CacheDestroy(c) })
}

//go:build !js && !wasm

package cache

import (
	"fmt"
	"syscall"
)

// mmapArena backs an arenaPageAllocator's arena with a real anonymous mmap
// region instead of a Go-heap byte slice, so the "pages" the allocator
// hands out are actual OS pages rather than a simulation of them. Size is
// rounded up to the OS page size by mmap itself; the allocator only ever
// deals in its own pageSize-multiples on top of that.
func mmapArena(size uint32) ([]byte, func() error, error) {
	data, err := syscall.Mmap(-1, 0, int(size),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_ANON|syscall.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: mmap arena: %w", err)
	}
	closer := func() error { return syscall.Munmap(data) }
	return data, closer, nil
}

// NewMmapPageAllocator creates a page allocator whose backing arena is a
// real anonymous memory mapping rather than ordinary Go-heap memory. Close
// must be called to release the mapping when the allocator and every cache
// drawing from it have been torn down.
func NewMmapPageAllocator(size uint32) (*MmapPageAllocator, error) {
	if size == 0 || size%pageSize != 0 {
		return nil, fmt.Errorf("cache: arena size %d must be a positive multiple of %d", size, pageSize)
	}
	data, closer, err := mmapArena(size)
	if err != nil {
		return nil, err
	}
	return &MmapPageAllocator{
		inner:  &arenaPageAllocator{arena: data, freeLists: make(map[uint8]Addr), limit: Addr(size)},
		closer: closer,
	}, nil
}

// MmapPageAllocator is a PageAllocator whose arena lives in an anonymous
// mmap mapping.
type MmapPageAllocator struct {
	inner  *arenaPageAllocator
	closer func() error
}

func (m *MmapPageAllocator) Arena() []byte { return m.inner.Arena() }

func (m *MmapPageAllocator) AllocPages(flags Flags, order uint8) (Addr, bool) {
	return m.inner.AllocPages(flags, order)
}

func (m *MmapPageAllocator) FreePages(addr Addr, order uint8) {
	m.inner.FreePages(addr, order)
}

// Close unmaps the backing arena. The allocator must not be used afterward.
func (m *MmapPageAllocator) Close() error {
	return m.closer()
}

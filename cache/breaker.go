package cache

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errPageAllocatorOOM = errors.New("cache: page allocator returned no pages")

// newGrowthBreaker builds the circuit breaker that guards a cache's calls
// into the page allocator. A cache whose page allocator keeps failing
// (its arena is exhausted) stops calling into it on every single Alloc for
// a cooldown window and instead fails fast. Each failed Alloc still emits
// the out-of-memory warning, subject to the sink's own throttling.
func newGrowthBreaker(name string) *gobreaker.CircuitBreaker[Addr] {
	st := gobreaker.Settings{
		Name:        "slab-growth:" + name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return gobreaker.NewCircuitBreaker[Addr](st)
}

// growCache asks the page allocator for a fresh slab through the cache's
// circuit breaker.
func growCache(c *Cache, flags Flags) (Addr, bool) {
	base, err := c.breaker.Execute(func() (Addr, error) {
		b, ok := allocateSlab(c, flags)
		if !ok {
			return 0, errPageAllocatorOOM
		}
		return b, nil
	})
	if err != nil {
		return 0, false
	}
	return base, true
}

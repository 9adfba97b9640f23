package main

import (
	"fmt"
	"os"

	"github.com/inos-labs/slabcache/cache"
	"github.com/inos-labs/slabcache/diag"
)

func main() {
	fmt.Println("slabcache demo starting...")

	pa, err := cache.NewArenaPageAllocator(1 << 20)
	if err != nil {
		fmt.Println("failed to create page allocator:", err)
		os.Exit(1)
	}

	d := diag.Default("slabdemo")

	alloc, err := cache.Init(pa, d)
	if err != nil {
		fmt.Println("bootstrap failed:", err)
		os.Exit(1)
	}
	fmt.Println("meta-cache bootstrapped:", alloc.Meta().Name())

	points, err := alloc.CacheCreate("point3d", 12, 4, 0)
	if err != nil {
		fmt.Println("cache create failed:", err)
		os.Exit(1)
	}
	fmt.Printf("created cache %q: %d bytes/object, %d objects/slab\n",
		points.Name(), points.ObjectSize(), points.ObjectsPerSlab())

	var handles []cache.Addr
	for i := 0; i < 5; i++ {
		p, ok := cache.Alloc(points, 0)
		if !ok {
			fmt.Println("allocation failed")
			os.Exit(1)
		}
		handles = append(handles, p)
	}
	fmt.Printf("allocated %d objects, %d still partial\n", len(handles), points.NrPartial())

	for _, p := range handles {
		cache.Free(points, p)
	}
	fmt.Println("freed all objects, nr_partial:", points.NrPartial())

	alloc.CacheDestroy(points)
	fmt.Println("cache destroyed")
}

package validator

import (
	"sync"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/tile"
)

// defaultCacheBytes bounds the shared cache. Tiles are memory mapped, so
// the bound is address space and open files more than heap.
const defaultCacheBytes = 1 << 30

// Cache is the validator's shared read-through tile cache. Workers pin a
// tile while reading a neighbor's records; Clear drops only unpinned
// tiles, so a concurrent Clear never unmaps memory in use.
type Cache struct {
	hier     *graph.Hierarchy
	maxBytes int64

	mu      sync.Mutex
	entries map[graph.GraphId]*cacheEntry
	bytes   int64
}

type cacheEntry struct {
	tile *tile.Tile
	pins int
}

// NewCache creates a cache over the given store. maxBytes <= 0 selects the
// default bound.
func NewCache(hier *graph.Hierarchy, maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = defaultCacheBytes
	}
	return &Cache{
		hier:     hier,
		maxBytes: maxBytes,
		entries:  make(map[graph.GraphId]*cacheEntry),
	}
}

// Get returns the tile holding id, opening it on first use. The returned
// release func unpins the tile and must be called exactly once.
func (c *Cache) Get(id graph.GraphId) (*tile.Tile, func(), error) {
	base := id.TileBase()

	c.mu.Lock()
	if e, ok := c.entries[base]; ok {
		e.pins++
		c.mu.Unlock()
		return e.tile, func() { c.release(base) }, nil
	}
	c.mu.Unlock()

	// Open outside the lock; a duplicate open loses the race and closes.
	t, err := tile.Open(c.hier.TilePath(base))
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[base]; ok {
		e.pins++
		c.mu.Unlock()
		t.Close()
		return e.tile, func() { c.release(base) }, nil
	}
	c.entries[base] = &cacheEntry{tile: t, pins: 1}
	c.bytes += int64(t.Size())
	c.mu.Unlock()
	return t, func() { c.release(base) }, nil
}

func (c *Cache) release(base graph.GraphId) {
	c.mu.Lock()
	if e, ok := c.entries[base]; ok && e.pins > 0 {
		e.pins--
	}
	c.mu.Unlock()
}

// OverCommitted reports whether the cache exceeds its size bound.
func (c *Cache) OverCommitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes > c.maxBytes
}

// Clear closes and drops every unpinned tile.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for base, e := range c.entries {
		if e.pins == 0 {
			c.bytes -= int64(e.tile.Size())
			e.tile.Close()
			delete(c.entries, base)
		}
	}
}

// Close drops everything regardless of pins; callers must be done.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for base, e := range c.entries {
		e.tile.Close()
		delete(c.entries, base)
	}
	c.bytes = 0
}

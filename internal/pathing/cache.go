package pathing

import (
	"math"
	"sort"

	"github.com/talgya/npc-favor/internal/world"
)

// Key is a path request with both endpoints snapped to the cache quantum.
type Key struct {
	SX, SZ, EX, EZ int32
}

// MakeKey quantizes a request.
func MakeKey(sx, sz, ex, ez, quantum float64) Key {
	if quantum <= 0 {
		quantum = 1
	}
	q := func(v float64) int32 { return int32(math.Floor(v / quantum)) }
	return Key{SX: q(sx), SZ: q(sz), EX: q(ex), EZ: q(ez)}
}

type cacheEntry struct {
	path []world.Vec3
	used uint64
}

// Cache stores planned paths. Callers always get a copy, so mutating a
// returned path never changes what later hits see. Size is only enforced
// by Evict.
type Cache struct {
	max     int
	entries map[Key]*cacheEntry
	clock   uint64

	hits, misses uint64
}

// NewCache creates a cache bounded to max entries at each eviction.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = 1
	}
	return &Cache{max: max, entries: make(map[Key]*cacheEntry)}
}

// Get returns a copy of the cached path for k.
func (c *Cache) Get(k Key) ([]world.Vec3, bool) {
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.clock++
	e.used = c.clock
	return clonePath(e.path), true
}

// Put stores a copy of p under k.
func (c *Cache) Put(k Key, p []world.Vec3) {
	c.clock++
	c.entries[k] = &cacheEntry{path: clonePath(p), used: c.clock}
}

// Evict drops least-recently-used entries until the cache is back within
// its bound, returning how many were removed.
func (c *Cache) Evict() int {
	over := len(c.entries) - c.max
	if over <= 0 {
		return 0
	}
	// Snapshot keys before deleting anything.
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return c.entries[keys[i]].used < c.entries[keys[j]].used })
	for _, k := range keys[:over] {
		delete(c.entries, k)
	}
	return over
}

// Len is the number of cached paths.
func (c *Cache) Len() int { return len(c.entries) }

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) { return c.hits, c.misses }

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries = make(map[Key]*cacheEntry)
}

func clonePath(p []world.Vec3) []world.Vec3 {
	if p == nil {
		return nil
	}
	out := make([]world.Vec3, len(p))
	copy(out, p)
	return out
}

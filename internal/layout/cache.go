package layout

import (
	"sync"

	"nativebind/internal/types"
)

type cacheEntry struct {
	Layout Layout
	Err    *LayoutError
}

// cache is shared by every builder; entries are only ever added.
type cache struct {
	mu     sync.RWMutex
	byType map[types.Key]*cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[types.Key]*cacheEntry, 256)}
}

func (c *cache) get(k types.Key) (*cacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.byType[k]
	c.mu.RUnlock()
	return e, ok
}

// put stores e unless another goroutine got there first, and returns the
// stored entry.
func (c *cache) put(k types.Key, e *cacheEntry) *cacheEntry {
	if c == nil || e == nil {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byType[k]; ok {
		return prev
	}
	c.byType[k] = e
	return e
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byType)
}

package types

import "sync"

// InstanceCache deduplicates emitted generic instantiations by their widened
// identity. Entries are only ever added.
type InstanceCache struct {
	mu    sync.Mutex
	owner map[string]KeyID
}

// NewInstanceCache creates an empty cache.
func NewInstanceCache() *InstanceCache {
	return &InstanceCache{owner: make(map[string]KeyID, 64)}
}

// Claim registers id as the owner of identity unless another key got there
// first. It returns the owning key and whether id is that owner.
func (c *InstanceCache) Claim(identity string, id KeyID) (KeyID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.owner[identity]; ok {
		return owner, owner == id
	}
	c.owner[identity] = id
	return id, true
}

// Owner returns the key that claimed identity.
func (c *InstanceCache) Owner(identity string) (KeyID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.owner[identity]
	return id, ok
}

// Len returns the number of distinct identities.
func (c *InstanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owner)
}

package types

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// Interner provides stable KeyIDs for type keys. It is safe for concurrent
// use; ids are never reassigned.
type Interner struct {
	mu    sync.RWMutex
	keys  []Key
	index map[Key]KeyID
}

// NewInterner constructs an interner with slot 0 reserved for NoKeyID.
func NewInterner() *Interner {
	return &Interner{
		keys:  make([]Key, 1, 256),
		index: make(map[Key]KeyID, 256),
	}
}

// Intern ensures k has a stable KeyID.
func (in *Interner) Intern(k Key) KeyID {
	in.mu.RLock()
	id, ok := in.index[k]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[k]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.keys))
	if err != nil {
		panic(fmt.Errorf("len(keys) overflow: %w", err))
	}
	id = KeyID(n)
	in.keys = append(in.keys, k)
	in.index[k] = id
	return id
}

// Find returns the id of an already interned key.
func (in *Interner) Find(k Key) (KeyID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.index[k]
	return id, ok
}

// Lookup returns the key for id.
func (in *Interner) Lookup(id KeyID) (Key, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoKeyID || int(id) >= len(in.keys) {
		return Key{}, false
	}
	return in.keys[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id KeyID) Key {
	k, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid KeyID")
	}
	return k
}

// Len returns the number of interned keys, excluding the sentinel.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.keys) - 1
}

// IDs returns every interned id in insertion order.
func (in *Interner) IDs() []KeyID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]KeyID, 0, len(in.keys)-1)
	for i := 1; i < len(in.keys); i++ {
		out = append(out, KeyID(i)) //nolint:gosec // bounded by len(keys)
	}
	return out
}

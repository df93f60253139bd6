package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"nativebind/internal/types"
)

// NodeID is a dense position in an Index.
type NodeID uint32

// Index maps the keys of one run onto dense node IDs in key order.
type Index struct {
	Keys  []types.KeyID
	nodes map[types.KeyID]NodeID
}

// BuildIndex sorts and deduplicates keys and numbers them in order.
func BuildIndex(keys []types.KeyID) Index {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	idx := Index{
		Keys:  sorted,
		nodes: make(map[types.KeyID]NodeID, len(sorted)),
	}
	for i, k := range sorted {
		idx.nodes[k] = nodeID(i)
	}
	return idx
}

// Node returns the node of a key.
func (idx Index) Node(k types.KeyID) (NodeID, bool) {
	n, ok := idx.nodes[k]
	return n, ok
}

// Key returns the key of a node.
func (idx Index) Key(n NodeID) types.KeyID { return idx.Keys[int(n)] }

// Len returns the number of nodes.
func (idx Index) Len() int { return len(idx.Keys) }

func nodeID(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("node id overflow: %w", err))
	}
	return id
}

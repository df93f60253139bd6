// Package dag orders types so that every value type is handled before the
// types that embed it.
package dag

import (
	"slices"

	"nativebind/internal/types"
)

// Graph holds embedding edges. Edges[from] lists the embedders of from.
type Graph struct {
	Edges [][]NodeID
	Indeg []int
}

// Node lists the keys a type embeds by value.
type Node struct {
	Key    types.KeyID
	Embeds []types.KeyID
}

// BuildGraph adds an edge from every embedded type to its embedder. Keys
// outside the index are ignored. A type embedding itself keeps its self
// edge so that it surfaces as a cycle.
func BuildGraph(idx Index, nodes []Node) Graph {
	n := idx.Len()
	g := Graph{
		Edges: make([][]NodeID, n),
		Indeg: make([]int, n),
	}
	for _, node := range nodes {
		to, ok := idx.Node(node.Key)
		if !ok {
			continue
		}
		seen := make(map[NodeID]struct{}, len(node.Embeds))
		for _, dep := range node.Embeds {
			from, ok := idx.Node(dep)
			if !ok {
				continue
			}
			if _, dup := seen[from]; dup {
				continue
			}
			seen[from] = struct{}{}
			g.Edges[from] = append(g.Edges[from], to)
			g.Indeg[to]++
		}
	}
	for from := range g.Edges {
		if len(g.Edges[from]) > 1 {
			slices.Sort(g.Edges[from])
		}
	}
	return g
}

// Embedders returns the nodes that embed n directly.
func (g Graph) Embedders(n NodeID) []NodeID { return g.Edges[int(n)] }

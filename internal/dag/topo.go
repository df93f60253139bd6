package dag

import "slices"

// Topo is the result of ToposortKahn.
type Topo struct {
	Order   []NodeID   // linear order of the sortable nodes
	Batches [][]NodeID // waves of mutually independent nodes
	Cyclic  bool
	Cycles  []NodeID // nodes on an embedding cycle
	Blocked []NodeID // nodes that only embed a cycle
}

// ToposortKahn sorts g into batches. Nodes left over split into those on a
// cycle and those merely downstream of one.
func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	indeg := slices.Clone(g.Indeg)

	topo := &Topo{
		Order:   make([]NodeID, 0, nodeCount),
		Batches: make([][]NodeID, 0),
	}

	current := make([]NodeID, 0, nodeCount)
	for i := range nodeCount {
		if indeg[i] == 0 {
			current = append(current, nodeID(i))
		}
	}

	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, to := range g.Edges[int(id)] {
				indeg[int(to)]--
				if indeg[int(to)] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) == nodeCount {
		return topo
	}
	topo.Cyclic = true
	left := make([]bool, nodeCount)
	for i := range nodeCount {
		left[i] = indeg[i] > 0
	}
	onCycle := cycleNodes(g, left)
	for i := range nodeCount {
		switch {
		case !left[i]:
		case onCycle[i]:
			topo.Cycles = append(topo.Cycles, nodeID(i))
		default:
			topo.Blocked = append(topo.Blocked, nodeID(i))
		}
	}
	return topo
}

// cycleNodes marks the members of non-trivial strongly connected components
// and self loops among the nodes in scope.
func cycleNodes(g Graph, scope []bool) []bool {
	n := len(g.Edges)
	var (
		index   = make([]int, n)
		low     = make([]int, n)
		onStack = make([]bool, n)
		stack   []int
		counter = 1
		out     = make([]bool, n)
	)
	var strong func(v int)
	strong = func(v int) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		for _, to := range g.Edges[v] {
			w := int(to)
			if !scope[w] {
				continue
			}
			switch {
			case index[w] == 0:
				strong(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 || slices.Contains(g.Edges[v], nodeID(v)) {
			for _, w := range comp {
				out[w] = true
			}
		}
	}
	for v := range n {
		if scope[v] && index[v] == 0 {
			strong(v)
		}
	}
	return out
}

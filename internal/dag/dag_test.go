package dag

import (
	"slices"
	"testing"

	"nativebind/internal/types"
)

func keysOf(idx Index, ids []NodeID) []types.KeyID {
	out := make([]types.KeyID, len(ids))
	for i, id := range ids {
		out[i] = idx.Key(id)
	}
	return out
}

func TestBuildIndexSortsAndDedups(t *testing.T) {
	idx := BuildIndex([]types.KeyID{7, 3, 7, 5})
	if !slices.Equal(idx.Keys, []types.KeyID{3, 5, 7}) {
		t.Fatalf("unexpected keys %v", idx.Keys)
	}
	if n, ok := idx.Node(7); !ok || n != 2 {
		t.Fatalf("Node(7) = %d, %v", n, ok)
	}
	if _, ok := idx.Node(4); ok {
		t.Fatalf("unknown keys have no node")
	}
}

func TestToposortBatchesEmbeddedFirst(t *testing.T) {
	// 1 embeds 2, 2 embeds 3, 4 embeds 3; 5 is independent.
	idx := BuildIndex([]types.KeyID{1, 2, 3, 4, 5})
	g := BuildGraph(idx, []Node{
		{Key: 1, Embeds: []types.KeyID{2, 2}},
		{Key: 2, Embeds: []types.KeyID{3}},
		{Key: 4, Embeds: []types.KeyID{3, 99}},
	})
	topo := ToposortKahn(g)
	if topo.Cyclic {
		t.Fatalf("unexpected cycle %v", topo.Cycles)
	}
	want := [][]types.KeyID{{3, 5}, {2, 4}, {1}}
	if len(topo.Batches) != len(want) {
		t.Fatalf("got %d batches, want %d", len(topo.Batches), len(want))
	}
	for i, b := range topo.Batches {
		if got := keysOf(idx, b); !slices.Equal(got, want[i]) {
			t.Fatalf("batch %d = %v, want %v", i, got, want[i])
		}
	}
	three, _ := idx.Node(3)
	if got := keysOf(idx, g.Embedders(three)); !slices.Equal(got, []types.KeyID{2, 4}) {
		t.Fatalf("embedders of 3 = %v", got)
	}
}

func TestToposortSeparatesCyclesFromBlocked(t *testing.T) {
	// 1 and 2 embed each other, 3 embeds 1, 4 embeds itself, 5 is fine.
	idx := BuildIndex([]types.KeyID{1, 2, 3, 4, 5})
	g := BuildGraph(idx, []Node{
		{Key: 1, Embeds: []types.KeyID{2}},
		{Key: 2, Embeds: []types.KeyID{1}},
		{Key: 3, Embeds: []types.KeyID{1}},
		{Key: 4, Embeds: []types.KeyID{4}},
	})
	topo := ToposortKahn(g)
	if !topo.Cyclic {
		t.Fatalf("expected a cycle")
	}
	if got := keysOf(idx, topo.Cycles); !slices.Equal(got, []types.KeyID{1, 2, 4}) {
		t.Fatalf("cycles = %v", got)
	}
	if got := keysOf(idx, topo.Blocked); !slices.Equal(got, []types.KeyID{3}) {
		t.Fatalf("blocked = %v", got)
	}
	if got := keysOf(idx, topo.Order); !slices.Equal(got, []types.KeyID{5}) {
		t.Fatalf("order = %v", got)
	}
}

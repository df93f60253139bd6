package deps

import (
	"slices"
	"testing"

	"nativebind/internal/types"
)

func TestFullDefinitionSupersedesForward(t *testing.T) {
	tr := New(1)
	tr.RequireForward(2, 9)
	if !tr.HasForward(2) {
		t.Fatalf("expected forward reference for 2")
	}
	tr.RequireFull(2)
	if tr.HasForward(2) || !tr.HasFull(2) {
		t.Fatalf("full definition must replace the forward reference")
	}
	tr.RequireForward(2, 9)
	if tr.HasForward(2) {
		t.Fatalf("forward reference must not downgrade a full definition")
	}
}

func TestTrackerNeverRecordsSelf(t *testing.T) {
	tr := New(3)
	tr.RequireFull(3)
	tr.RequireForward(3, 3)
	tr.RequireImpl(3)
	tr.Depend(3)
	req := tr.Requirements()
	if len(req.Full)+len(req.Forward)+len(req.Impl)+len(req.Depends) != 0 {
		t.Fatalf("self must never be recorded, got %+v", req)
	}
}

func TestTrackerDeduplicates(t *testing.T) {
	tr := New(1)
	for range 3 {
		tr.Depend(5)
		tr.Depend(4)
		tr.RequireForward(7, 2)
		tr.NeedSupport(SupportInt)
	}
	if got := tr.Depends(); !slices.Equal(got, []types.KeyID{4, 5}) {
		t.Fatalf("depends = %v, want [4 5]", got)
	}
	if got := tr.Forward(); len(got) != 1 || got[0] != (ForwardRef{Type: 7, Unit: 2}) {
		t.Fatalf("forward = %v", got)
	}
	if got := tr.Support().Names(); !slices.Equal(got, []string{"int"}) {
		t.Fatalf("support = %v", got)
	}
}

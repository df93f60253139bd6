package diag

import "testing"

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(0)
	r := BagReporter{Bag: b}
	ReportWarning(r, LayoutOffsetBelowBase, Subject{Type: "B.Thing", Member: "x"}, "offset 0x8 below 0x10").Emit()
	ReportInfo(r, BindDeniedType, Subject{Type: "A.Thing"}, "denied").Emit()
	ReportError(r, LayoutMissingSize, Subject{Type: "A.Thing"}, "no size").Emit()
	ReportInfo(r, BindDeniedType, Subject{Type: "A.Thing"}, "denied").Emit()

	b.Dedup()
	if b.Len() != 3 {
		t.Fatalf("expected 3 diagnostics after dedup, got %d", b.Len())
	}
	b.Sort()
	items := b.Items()
	if items[0].Code != LayoutMissingSize || items[1].Code != BindDeniedType || items[2].Subject.Type != "B.Thing" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if !b.HasErrors() || b.Count(SevWarning) != 1 {
		t.Fatalf("severity accounting wrong")
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(New(SevInfo, BindInfo, Subject{Type: "T"}, "one")) {
		t.Fatalf("first add must succeed")
	}
	if b.Add(New(SevInfo, BindInfo, Subject{Type: "T"}, "two")) {
		t.Fatalf("second add must hit the limit")
	}
	other := NewBag(0)
	other.Add(New(SevError, BindTypeFailed, Subject{Type: "U"}, "three"))
	b.Merge(other)
	if b.Len() != 2 {
		t.Fatalf("merge must grow the limit, got %d items", b.Len())
	}
}

func TestCodeID(t *testing.T) {
	if got := LayoutCollision.ID(); got != "LAY3002" {
		t.Fatalf("ID = %q", got)
	}
	if got := Code(9999).Title(); got != "Unknown error" {
		t.Fatalf("Title = %q", got)
	}
}

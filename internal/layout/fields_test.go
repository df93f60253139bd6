package layout

import (
	"testing"

	"nativebind/internal/model"
)

func info(name string, off, size uint32) FieldInfo {
	return FieldInfo{
		Field:  &model.Field{Name: name, Offset: off, Size: size, HasOffset: true},
		Offset: off,
		Size:   size,
	}
}

func fieldName(t *testing.T, m model.Member) string {
	t.Helper()
	f, ok := m.(*model.Field)
	if !ok {
		t.Fatalf("expected field, got %T", m)
	}
	return f.Name
}

func TestHasCollision(t *testing.T) {
	if HasCollision([]FieldInfo{info("a", 0, 4), info("b", 4, 4)}) {
		t.Fatalf("adjacent fields do not collide")
	}
	if !HasCollision([]FieldInfo{info("b", 0, 8), info("a", 4, 4)}) {
		t.Fatalf("overlap not detected")
	}
}

func TestUnionizeParallelBranches(t *testing.T) {
	members := Unionize([]FieldInfo{info("A", 0, 4), info("B", 0, 8), info("C", 8, 4)})
	if len(members) != 1 {
		t.Fatalf("expected one union, got %d members", len(members))
	}
	u, ok := members[0].(*model.Union)
	if !ok {
		t.Fatalf("expected union, got %T", members[0])
	}
	if len(u.Members) != 2 {
		t.Fatalf("expected two branches, got %d", len(u.Members))
	}
	if fieldName(t, u.Members[0]) != "B" {
		t.Fatalf("the widest field anchors the first branch")
	}
	s, ok := u.Members[1].(*model.Struct)
	if !ok {
		t.Fatalf("expected sequential struct branch, got %T", u.Members[1])
	}
	var seq []string
	for _, m := range s.Members {
		f := m.(*model.Field)
		if f.IsPadding() {
			if f.Offset != 4 || f.PadBytes != 4 {
				t.Fatalf("gap pad must cover 4..8, got %d+%d", f.Offset, f.PadBytes)
			}
			continue
		}
		seq = append(seq, f.Name)
	}
	if len(seq) != 2 || seq[0] != "A" || seq[1] != "C" {
		t.Fatalf("expected branch {A, C}, got %v", seq)
	}
}

func TestUnionizeWithoutOverlapKeepsFields(t *testing.T) {
	members := Unionize([]FieldInfo{info("a", 0, 1), info("b", 1, 1), info("c", 2, 2), info("d", 4, 4)})
	if len(members) != 4 {
		t.Fatalf("expected four plain fields, got %d", len(members))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if got := fieldName(t, members[i]); got != want {
			t.Fatalf("member %d: got %s, want %s", i, got, want)
		}
	}
}

func TestExplicitUnionPair(t *testing.T) {
	u := ExplicitUnion([]FieldInfo{info("value", 0x10, 4)}, 8)
	if len(u.Members) != 2 {
		t.Fatalf("expected two struct variants, got %d", len(u.Members))
	}
	packed := u.Members[0].(*model.Struct)
	aligned := u.Members[1].(*model.Struct)
	if packed.Packing != 1 || aligned.Packing != 8 {
		t.Fatalf("unexpected packings %d/%d", packed.Packing, aligned.Packing)
	}
	for _, s := range []*model.Struct{packed, aligned} {
		if len(s.Members) != 2 {
			t.Fatalf("expected pad and field, got %d members", len(s.Members))
		}
		pad := s.Members[0].(*model.Field)
		if pad.PadBytes != 0x10 {
			t.Fatalf("expected a 0x10 leading pad, got 0x%x", pad.PadBytes)
		}
	}
	if fieldName(t, packed.Members[0]) != "value_padding" || fieldName(t, packed.Members[1]) != "value" {
		t.Fatalf("unexpected packed names")
	}
	if fieldName(t, aligned.Members[0]) != "value_padding_forAlignment" || fieldName(t, aligned.Members[1]) != "value_forAlignment" {
		t.Fatalf("unexpected aligned names")
	}

	u = ExplicitUnion([]FieldInfo{info("head", 0, 4)}, 4)
	if n := len(u.Members[0].(*model.Struct).Members); n != 1 {
		t.Fatalf("no pad at offset 0, got %d members", n)
	}
}

func packing(p uint8) *uint8 { return &p }

func TestSizePadding(t *testing.T) {
	pad, ok := SizePadding(&model.SizeInfo{InstanceSize: 0x20, CalculatedSize: 0x18, NaturalAlignment: 8, Packing: packing(8)})
	if !ok || pad.PadBytes != 0x8 || pad.Offset != 0x18 {
		t.Fatalf("expected 0x8 pad at 0x18, got %+v", pad)
	}
	if _, ok := SizePadding(&model.SizeInfo{InstanceSize: 0x20, CalculatedSize: 0x1F, NaturalAlignment: 8, Packing: packing(8)}); ok {
		t.Fatalf("a remainder rounded to zero emits no pad")
	}
	if _, ok := SizePadding(&model.SizeInfo{InstanceSize: 0x20, CalculatedSize: 0x1F, NaturalAlignment: 1, Packing: packing(8)}); ok {
		t.Fatalf("one byte rounds down to zero at packing 8")
	}
	if _, ok := SizePadding(&model.SizeInfo{InstanceSize: 0, CalculatedSize: 4}); ok {
		t.Fatalf("unsized types are skipped")
	}
}

func TestClosestPacking(t *testing.T) {
	for in, want := range map[uint32]uint32{0: 0, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 8: 8, 16: 8} {
		if got := closestPacking(in); got != want {
			t.Fatalf("closestPacking(%d) = %d, want %d", in, got, want)
		}
	}
}

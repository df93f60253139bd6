package names_test

import (
	"testing"

	"nativebind/internal/metadata"
	"nativebind/internal/names"
	"nativebind/internal/testkit"
)

func TestWidenSharesReferenceArguments(t *testing.T) {
	b := testkit.NewSnapshot()
	list := b.Class("Game", "List`1")
	b.Generic(list, "T")
	a := b.Class("Game", "A")
	c := b.Class("Game", "C")
	owner := b.Class("Game", "Owner")
	f := newFixture(b)
	r, acc := f.resolver(t, owner, nil)

	wa, err := r.Widen(acc, list, []metadata.TypeIndex{b.Ref(a)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	wc, err := r.Widen(acc, list, []metadata.TypeIndex{b.Ref(c)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if wa.Identity != wc.Identity {
		t.Fatalf("reference arguments must share one identity: %q vs %q", wa.Identity, wc.Identity)
	}
	if len(wa.Template) != 1 || wa.Template[0].Name != "T_gen_0" || wa.Template[0].Constraint.Kind != names.ConstraintObject {
		t.Fatalf("unexpected template %+v", wa.Template)
	}
	if wa.Args[0].String() != "T_gen_0" {
		t.Fatalf("argument not replaced by placeholder: %q", wa.Args[0])
	}
}

func TestWidenSeparatesValueArguments(t *testing.T) {
	b := testkit.NewSnapshot()
	list := b.Class("Game", "List`1")
	b.Generic(list, "T")
	v1 := b.Struct("Game", "Vector2")
	v2 := b.Struct("Game", "Vector3")
	owner := b.Class("Game", "Owner")
	f := newFixture(b)
	r, acc := f.resolver(t, owner, nil)

	w1, err := r.Widen(acc, list, []metadata.TypeIndex{b.Ref(v1)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	w2, err := r.Widen(acc, list, []metadata.TypeIndex{b.Ref(v2)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if w1.Identity == w2.Identity {
		t.Fatalf("distinct value arguments must not share an identity: %q", w1.Identity)
	}
	if len(w1.Template) != 0 || w1.Args[0].String() != "Game.Vector2" {
		t.Fatalf("value argument must stay concrete: %+v", w1)
	}
}

func TestWidenIntegerBacking(t *testing.T) {
	b := testkit.NewSnapshot()
	dict := b.Class("Game", "Dictionary`2")
	b.Generic(dict, "TKey", "TValue")
	mode := b.Enum("Game", "Mode", metadata.TagI4)
	owner := b.Class("Game", "Owner")
	f := newFixture(b)
	r, acc := f.resolver(t, owner, nil)

	we, err := r.Widen(acc, dict, []metadata.TypeIndex{b.Ref(mode), b.Prim(metadata.TagString)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	wi, err := r.Widen(acc, dict, []metadata.TypeIndex{b.Prim(metadata.TagI4), b.Ref(b.Object)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if we.Identity != wi.Identity {
		t.Fatalf("an enum must share the instantiation of its backing integer: %q vs %q", we.Identity, wi.Identity)
	}
	if len(we.Template) != 2 {
		t.Fatalf("expected two placeholders, got %+v", we.Template)
	}
	key := we.Template[0]
	if key.Name != "TKey_gen_0" || key.Constraint.Kind != names.ConstraintIntegerBacked || key.Constraint.Backing.String() != "int32_t" {
		t.Fatalf("unexpected key placeholder %+v", key)
	}
	if we.Template[1].Name != "TValue_gen_1" {
		t.Fatalf("placeholder counter must increase, got %q", we.Template[1].Name)
	}

	wl, err := r.Widen(acc, dict, []metadata.TypeIndex{b.Prim(metadata.TagI8), b.Ref(b.Object)})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if wl.Identity == wi.Identity {
		t.Fatalf("different integer widths must not share an identity")
	}
}

func TestWidenRecursesIntoValueInstances(t *testing.T) {
	b := testkit.NewSnapshot()
	list := b.Class("Game", "List`1")
	b.Generic(list, "T")
	pair := b.Struct("Game", "Pair`2")
	b.Generic(pair, "A", "B")
	x := b.Class("Game", "X")
	y := b.Class("Game", "Y")
	owner := b.Class("Game", "Owner")
	f := newFixture(b)
	r, acc := f.resolver(t, owner, nil)

	px := b.Inst(pair, b.Ref(x), b.Prim(metadata.TagU1))
	py := b.Inst(pair, b.Ref(y), b.Prim(metadata.TagU1))
	wx, err := r.Widen(acc, list, []metadata.TypeIndex{px})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	wy, err := r.Widen(acc, list, []metadata.TypeIndex{py})
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if wx.Identity != wy.Identity {
		t.Fatalf("nested reference arguments must widen too: %q vs %q", wx.Identity, wy.Identity)
	}
	if got := wx.Args[0].String(); got != "Game.Pair`2<A_gen_0, B_gen_1>" {
		t.Fatalf("unexpected nested widened name %q", got)
	}
}

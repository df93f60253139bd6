package builder_test

import (
	"errors"
	"testing"

	"nativebind/internal/builder"
	"nativebind/internal/diag"
	"nativebind/internal/layout"
	"nativebind/internal/metadata"
	"nativebind/internal/model"
	"nativebind/internal/names"
	"nativebind/internal/testkit"
	"nativebind/internal/types"
)

func newBuilder(t *testing.T, b *testkit.Snap) *builder.Builder {
	t.Helper()
	env := names.NewEnv(b.S, types.NewInterner(), b.S.Deny)
	sizer, err := layout.NewSizer(b.S, layout.AArch64Android())
	if err != nil {
		t.Fatalf("NewSizer: %v", err)
	}
	return builder.New(env, sizer, nil)
}

func buildID(t *testing.T, bl *builder.Builder, id types.KeyID) (*model.TypeModel, *diag.Bag, error) {
	t.Helper()
	bag := diag.NewBag(0)
	m, _, err := bl.Build(id, diag.BagReporter{Bag: bag})
	return m, bag, err
}

func build(t *testing.T, bl *builder.Builder, def metadata.TypeDefIndex) (*model.TypeModel, *diag.Bag) {
	t.Helper()
	m, bag, err := buildID(t, bl, bl.Env().Keys.Intern(types.Key{Def: def}))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m, bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func field(t *testing.T, m model.Member) *model.Field {
	t.Helper()
	f, ok := m.(*model.Field)
	if !ok {
		t.Fatalf("expected field, got %T", m)
	}
	return f
}

func TestBuildValueTypeEndToEnd(t *testing.T) {
	b := testkit.NewSnapshot()
	pk := b.Struct("Net", "Packet")
	b.Field(pk, "a", b.Prim(metadata.TagU1))
	b.Field(pk, "b", b.Prim(metadata.TagU1))
	b.Field(pk, "c", b.Prim(metadata.TagI2))
	b.Field(pk, "d", b.Prim(metadata.TagI4))
	b.StaticField(pk, "Zero", b.Prim(metadata.TagI4))
	b.Size(pk, 16+12, 4, 16, 17, 18, 20)

	m, _ := build(t, newBuilder(t, b), pk)
	if m.Kind != model.KindValue || m.Size == nil {
		t.Fatalf("unexpected model %+v", m)
	}
	if m.Size.InstanceSize != 12 || m.Size.CalculatedSize != 8 {
		t.Fatalf("sizes = %d/%d, want 12/8", m.Size.InstanceSize, m.Size.CalculatedSize)
	}
	if len(m.Members) != 6 {
		t.Fatalf("expected 4 fields, a pad and a static, got %d members", len(m.Members))
	}
	for i, want := range []struct {
		name string
		off  uint32
	}{{"a", 0}, {"b", 1}, {"c", 2}, {"d", 4}} {
		f := field(t, m.Members[i])
		if f.Name != want.name || f.Offset != want.off {
			t.Fatalf("member %d = %s@%d, want %s@%d", i, f.Name, f.Offset, want.name, want.off)
		}
	}
	pad := field(t, m.Members[4])
	if pad.Name != layout.SizePaddingName || pad.Offset != 8 || pad.PadBytes != 4 {
		t.Fatalf("unexpected size pad %+v", pad)
	}
	if f := field(t, m.Members[5]); f.Name != "Zero" || f.Storage != model.StorageStatic {
		t.Fatalf("static field must come last, got %+v", f)
	}
}

func TestBuildRenamesFieldsShadowedByProperties(t *testing.T) {
	b := testkit.NewSnapshot()
	p := b.Class("Game", "Player")
	b.Field(p, "health", b.Prim(metadata.TagI4))
	get := b.Method(p, "get_health", 0, b.Prim(metadata.TagI4))
	b.Property(p, "health", get, metadata.NoMethod)
	inst := b.Method(p, "get_Instance", metadata.MethodAttrStatic, b.Ref(p))
	b.Property(p, "Instance", inst, metadata.NoMethod)
	set := b.Method(p, "set_Item", 0, b.Prim(metadata.TagVoid),
		metadata.ParamDef{Name: "i", Type: b.Prim(metadata.TagI4)},
		metadata.ParamDef{Name: "value", Type: b.Prim(metadata.TagR4)})
	b.Property(p, "Item", metadata.NoMethod, set)
	b.Size(p, 0x14, 8, 0x10)

	m, _ := build(t, newBuilder(t, b), p)
	var props []*model.Property
	var fieldNames []string
	for _, mem := range m.Members {
		switch v := mem.(type) {
		case *model.Property:
			props = append(props, v)
		case *model.Field:
			fieldNames = append(fieldNames, v.Name)
		}
	}
	if len(props) != 2 {
		t.Fatalf("static-only properties are skipped, got %d properties", len(props))
	}
	if props[0].Name != "health" || props[0].Type.String() != "int32_t" || props[0].Getter != "get_health" {
		t.Fatalf("unexpected property %+v", props[0])
	}
	if !props[1].Indexable || props[1].Type.String() != "float_t" || props[1].Getter != "" {
		t.Fatalf("setter-only indexer takes the type of its last parameter, got %+v", props[1])
	}
	if len(fieldNames) != 1 || fieldNames[0] != "_cordl_health" {
		t.Fatalf("expected the renamed field, got %v", fieldNames)
	}
}

func accessors(m *model.TypeModel) (map[string]*model.Property, map[string]*model.Method) {
	props := make(map[string]*model.Property)
	methods := make(map[string]*model.Method)
	for _, mem := range m.Members {
		switch v := mem.(type) {
		case *model.Property:
			if v.Backing != "" {
				props[v.Name] = v
			}
		case *model.Method:
			if v.IsAccessor() {
				methods[v.Name] = v
			}
		}
	}
	return props, methods
}

func TestBuildWrapsReferenceFieldsInAccessors(t *testing.T) {
	b := testkit.NewSnapshot()
	p := b.Class("Game", "Mob")
	b.Field(p, "hp", b.Prim(metadata.TagI4))
	b.StaticField(p, "Count", b.Prim(metadata.TagI4))
	b.Size(p, 0x14, 8, 0x10)

	m, _ := build(t, newBuilder(t, b), p)
	f := field(t, m.Members[0])
	if f.Name != "__cordl_internal_hp" || f.Offset != 0x10 {
		t.Fatalf("unexpected backing field %+v", f)
	}
	if s := field(t, m.Members[1]); s.Name != "Count" || s.Storage != model.StorageStatic {
		t.Fatalf("static fields keep their name, got %+v", s)
	}

	props, methods := accessors(m)
	if len(props) != 1 || len(methods) != 2 {
		t.Fatalf("expected one accessor property and two accessors, got %d/%d", len(props), len(methods))
	}
	prop := props["hp"]
	if prop == nil || prop.Backing != f.Name || prop.Type.String() != "int32_t" || !prop.Instance {
		t.Fatalf("unexpected property %+v", prop)
	}
	get, set := methods[prop.Getter], methods[prop.Setter]
	if get == nil || get.Name != "__cordl_internal_get_hp" || get.Return.String() != "int32_t" || len(get.Params) != 0 {
		t.Fatalf("unexpected getter %+v", get)
	}
	if set == nil || set.Return.String() != "void" || len(set.Params) != 1 || set.Params[0].Type.String() != "int32_t" {
		t.Fatalf("unexpected setter %+v", set)
	}
	if get.Index != metadata.NoMethod || !get.Instance {
		t.Fatalf("accessors are synthesized instance methods, got %+v", get)
	}
}

func TestBuildSequentialValueTypeHasNoAccessors(t *testing.T) {
	b := testkit.NewSnapshot()
	v := b.Struct("Game", "Vec2")
	b.Field(v, "x", b.Prim(metadata.TagR4))
	b.Field(v, "y", b.Prim(metadata.TagR4))
	b.Size(v, 16+8, 4, 16, 20)

	m, _ := build(t, newBuilder(t, b), v)
	if props, methods := accessors(m); len(props)+len(methods) != 0 {
		t.Fatalf("sequential value types expose fields directly, got %d/%d", len(props), len(methods))
	}
	if f := field(t, m.Members[0]); f.Name != "x" {
		t.Fatalf("field renamed to %s", f.Name)
	}
}

func TestBuildExplicitValueType(t *testing.T) {
	b := testkit.NewSnapshot()
	v := b.Struct("Game", "Bits")
	b.Explicit(v)
	b.Field(v, "whole", b.Prim(metadata.TagI8))
	b.Field(v, "hi", b.Prim(metadata.TagI4))
	e := b.Size(v, 16+8, 8, 16, 20)
	e.Packing, e.HasPacking = 4, true

	m, bag := build(t, newBuilder(t, b), v)
	if !m.Explicit || m.Size.InstanceSize != 8 || m.Size.CalculatedSize != 8 {
		t.Fatalf("unexpected size %+v", m.Size)
	}
	if hasCode(bag, diag.LayoutSizePadding) {
		t.Fatalf("a fully covered explicit type needs no padding")
	}
	u, ok := m.Members[0].(*model.Union)
	if !ok {
		t.Fatalf("explicit fields are overlaid in one union, got %T", m.Members[0])
	}
	if u.Offset != 0 || len(u.Members) != 4 {
		t.Fatalf("expected a packed and an aligned variant per field, got %d", len(u.Members))
	}
	for i, want := range []struct {
		packing uint8
		names   []string
	}{
		{1, []string{"__cordl_internal_whole"}},
		{4, []string{"__cordl_internal_whole_forAlignment"}},
		{1, []string{"__cordl_internal_hi_padding", "__cordl_internal_hi"}},
		{4, []string{"__cordl_internal_hi_padding_forAlignment", "__cordl_internal_hi_forAlignment"}},
	} {
		st, ok := u.Members[i].(*model.Struct)
		if !ok || st.Packing != want.packing || len(st.Members) != len(want.names) {
			t.Fatalf("variant %d: unexpected %+v", i, u.Members[i])
		}
		for j, name := range want.names {
			if got := field(t, st.Members[j]).Name; got != name {
				t.Fatalf("variant %d member %d = %s, want %s", i, j, got, name)
			}
		}
	}
	if pad := field(t, u.Members[2].(*model.Struct).Members[0]); pad.PadBytes != 4 {
		t.Fatalf("hi sits behind a 4-byte pad, got %d", pad.PadBytes)
	}

	props, methods := accessors(m)
	if len(props) != 2 || len(methods) != 4 {
		t.Fatalf("explicit value fields are wrapped, got %d/%d", len(props), len(methods))
	}
	if p := props["hi"]; p == nil || p.Backing != "__cordl_internal_hi" || p.Type.String() != "int32_t" {
		t.Fatalf("unexpected property %+v", props["hi"])
	}
}

func TestBuildSkipsStaticConstructor(t *testing.T) {
	b := testkit.NewSnapshot()
	c := b.Class("Game", "Spawner")
	b.Method(c, ".cctor", metadata.MethodAttrStatic, b.Prim(metadata.TagVoid))
	b.Method(c, ".ctor", 0, b.Prim(metadata.TagVoid), metadata.ParamDef{Name: "count", Type: b.Prim(metadata.TagI4)})
	b.Method(c, "Update", metadata.MethodAttrVirtual, b.Prim(metadata.TagVoid))
	b.Size(c, 0x10, 8)

	m, _ := build(t, newBuilder(t, b), c)
	var ctors, methods int
	for _, mem := range m.Members {
		switch v := mem.(type) {
		case *model.Constructor:
			ctors++
			if len(v.Params) != 1 || v.Params[0].Type.String() != "int32_t" {
				t.Fatalf("unexpected constructor %+v", v)
			}
		case *model.Method:
			methods++
			if v.Name != "Update" || !v.Virtual || !v.Instance {
				t.Fatalf("unexpected method %+v", v)
			}
		}
	}
	if ctors != 1 || methods != 1 {
		t.Fatalf("expected one constructor and one method, got %d/%d", ctors, methods)
	}
}

func TestBuildExcludesDeniedAndOrphanTypes(t *testing.T) {
	b := testkit.NewSnapshot()
	orphan := b.Orphan("Game", "Loose")
	secret := b.Class("Game", "Secret")
	b.Deny("Game.Secret")
	bl := newBuilder(t, b)

	for _, def := range []metadata.TypeDefIndex{orphan, secret} {
		_, bag, err := buildID(t, bl, bl.Env().Keys.Intern(types.Key{Def: def}))
		if !errors.Is(err, builder.ErrExcluded) {
			t.Fatalf("expected ErrExcluded for %s, got %v", b.S.FullName(def), err)
		}
		if !hasCode(bag, diag.BindTypeExcluded) {
			t.Fatalf("exclusion must be reported")
		}
	}
}

func TestBuildOffsetBelowHeaderWarns(t *testing.T) {
	b := testkit.NewSnapshot()
	c := b.Class("Game", "Odd")
	b.Field(c, "raw", b.Prim(metadata.TagI8))
	b.Size(c, 0x18, 8, 8)

	m, bag := build(t, newBuilder(t, b), c)
	if !hasCode(bag, diag.LayoutOffsetBelowBase) {
		t.Fatalf("expected an offset warning, got %v", bag.Items())
	}
	f := field(t, m.Members[0])
	if f.Name != "__cordl_internal_raw" || f.Offset != 8 {
		t.Fatalf("the raw offset is kept, got %+v", f)
	}
}

func TestBuildMethodInstantiations(t *testing.T) {
	b := testkit.NewSnapshot()
	u := b.Class("Game", "Util")
	mk := b.Method(u, "Make", metadata.MethodAttrStatic, b.Prim(metadata.TagVoid))
	mv := b.GenericMethod(mk, "T")
	b.S.Methods[mk].Return = mv[0]
	b.S.Methods[mk].Params = []metadata.ParamDef{{Name: "seed", Type: mv[0]}}
	b.MethodSpec(mk, metadata.NoInst, b.Prim(metadata.TagI4))
	b.Size(u, 0x10, 8)

	bl := newBuilder(t, b)
	for range 2 {
		if err := bl.AddMethodInstantiation(b.S.MethodSpecs[0]); err != nil {
			t.Fatalf("AddMethodInstantiation: %v", err)
		}
	}
	m, _ := build(t, bl, u)

	var methods []*model.Method
	for _, mem := range m.Members {
		if v, ok := mem.(*model.Method); ok {
			methods = append(methods, v)
		}
	}
	if len(methods) != 1 {
		t.Fatalf("instantiations add no members, got %d methods", len(methods))
	}
	if methods[0].Template == nil || methods[0].Return.String() != "T" {
		t.Fatalf("the declaration stays generic, got %+v", methods[0])
	}
	if len(m.MethodInstances) != 1 {
		t.Fatalf("duplicate requests collapse, got %d instances", len(m.MethodInstances))
	}
	mi := m.MethodInstances[0]
	if mi.Args[0].String() != "int32_t" || mi.Return.String() != "int32_t" || mi.Params[0].Type.String() != "int32_t" {
		t.Fatalf("unexpected instantiation %+v", mi)
	}
}

func TestBuildSharedInstances(t *testing.T) {
	b := testkit.NewSnapshot()
	list := b.Class("Game", "List`1")
	tp := b.Generic(list, "T")
	b.Field(list, "head", tp[0])
	foo := b.Class("Game", "Foo")
	bar := b.Class("Game", "Bar")
	lf := b.Inst(list, b.Ref(foo))
	lb := b.Inst(list, b.Ref(bar))

	bl := newBuilder(t, b)
	first, err := bl.Register(b.ClassOf(lf))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	second, err := bl.Register(b.ClassOf(lb))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, id := range []types.KeyID{first, second} {
		if _, owner, err := bl.Claim(id); err != nil || owner != first {
			t.Fatalf("Claim(%d) = %d, %v; want owner %d", id, owner, err, first)
		}
	}

	owner, _, err := buildID(t, bl, first)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if owner.Template == nil || len(owner.Template.Params) != 1 || owner.Template.Params[0].Name != "T_gen_0" {
		t.Fatalf("the owner is emitted as the widened template, got %+v", owner.Template)
	}
	if f := field(t, owner.Members[0]); f.Type.String() != "T_gen_0" || f.Offset != 0x10 {
		t.Fatalf("unexpected owner field %+v", f)
	}

	shared, bag, err := buildID(t, bl, second)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if shared.SharedWith != first || !hasCode(bag, diag.BindSharedInstance) {
		t.Fatalf("second instantiation must share the first, got %d", shared.SharedWith)
	}
	if shared.Identity != owner.Identity {
		t.Fatalf("identities differ: %s vs %s", shared.Identity, owner.Identity)
	}
	if f := field(t, shared.Members[0]); f.Type.String() != "Game.Bar*" {
		t.Fatalf("shared models keep concrete names, got %s", f.Type)
	}
}

func TestBuildSelfReferentialTemplate(t *testing.T) {
	b := testkit.NewSnapshot()
	node := b.Class("Game", "Node`1")
	tp := b.Generic(node, "T")
	b.Field(node, "next", b.Inst(node, tp[0]))
	b.Field(node, "value", tp[0])

	bl := newBuilder(t, b)
	m, acc, err := bl.Build(bl.Env().Keys.Intern(types.Key{Def: node}), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !m.IsTemplate() || m.Size != nil {
		t.Fatalf("definitions with parameters are layout-free templates")
	}
	if got := field(t, m.Members[0]).Type.String(); got != "Game.Node`1<T>*" {
		t.Fatalf("self reference = %s", got)
	}
	if got := field(t, m.Members[1]).Type.String(); got != "T" {
		t.Fatalf("parameter field = %s", got)
	}
	self := bl.Env().Keys.Intern(types.Key{Def: node})
	alias := bl.Env().Keys.Intern(types.Key{Def: node, Args: "!0"})
	for _, id := range []types.KeyID{self, alias} {
		if acc.DependsOn(id) || acc.HasFull(id) {
			t.Fatalf("a template never depends on itself, got %v", acc.Depends())
		}
	}
}

func TestBuildInstanceReferencingItself(t *testing.T) {
	b := testkit.NewSnapshot()
	node := b.Class("Game", "Node`1")
	tp := b.Generic(node, "T")
	b.Field(node, "next", b.Inst(node, tp[0]))
	foo := b.Class("Game", "Foo")
	nf := b.Inst(node, b.Ref(foo))

	bl := newBuilder(t, b)
	id, err := bl.Register(b.ClassOf(nf))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, acc, err := bl.Build(id, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := m.Name.Pointer(true).String(); field(t, m.Members[0]).Type.String() != want {
		t.Fatalf("next = %s, want %s", field(t, m.Members[0]).Type, want)
	}
	if want := "Game.Node`1<Game.Foo*>"; m.Name.Pointer(false).String() != want {
		t.Fatalf("name = %s, want %s", m.Name, want)
	}
	if acc.DependsOn(id) || acc.HasFull(id) || acc.HasForward(id) {
		t.Fatalf("an instance never depends on itself, got %v", acc.Depends())
	}
}

func TestBuildRecursiveValueTypeFails(t *testing.T) {
	b := testkit.NewSnapshot()
	a := b.Struct("Game", "A")
	c := b.Struct("Game", "C")
	b.Field(a, "c", b.Ref(c))
	b.Field(c, "a", b.Ref(a))

	bl := newBuilder(t, b)
	_, bag, err := buildID(t, bl, bl.Env().Keys.Intern(types.Key{Def: a}))
	if !errors.Is(err, &layout.LayoutError{Kind: layout.ErrRecursiveValueType}) {
		t.Fatalf("expected a recursive layout error, got %v", err)
	}
	if !hasCode(bag, diag.LayoutRecursiveValue) {
		t.Fatalf("the failure must be reported")
	}
}

func TestBuildMissingSizeInfo(t *testing.T) {
	b := testkit.NewSnapshot()
	c := b.Class("Game", "Unsized")
	b.Field(c, "x", b.Prim(metadata.TagI4))

	bl := newBuilder(t, b)
	_, bag, err := buildID(t, bl, bl.Env().Keys.Intern(types.Key{Def: c}))
	if !errors.Is(err, &layout.LayoutError{Kind: layout.ErrMissingSizeInfo}) {
		t.Fatalf("expected missing size info, got %v", err)
	}
	if !hasCode(bag, diag.LayoutMissingSize) {
		t.Fatalf("the failure must be reported")
	}
}

func TestBuildEnumWithoutEntry(t *testing.T) {
	b := testkit.NewSnapshot()
	e := b.Enum("Game", "Mode", metadata.TagU2)
	b.ConstField(e, "Fast", b.Ref(e), []byte{2, 0})

	m, _ := build(t, newBuilder(t, b), e)
	if m.Kind != model.KindEnum || m.Size == nil || m.Size.InstanceSize != 2 {
		t.Fatalf("enums are sized by their backing integer, got %+v", m.Size)
	}
	v := field(t, m.Members[0])
	if v.Name != "value__" || !v.HasOffset || v.Offset != 0 || v.Type.String() != "uint16_t" {
		t.Fatalf("unexpected backing field %+v", v)
	}
}

func TestBuildConstants(t *testing.T) {
	b := testkit.NewSnapshot()
	c := b.Class("Game", "Limits")
	b.ConstField(c, "Max", b.Prim(metadata.TagI4), model.EncodeCompressedInt32(-7))
	b.ConstField(c, "Big", b.Prim(metadata.TagI4), model.EncodeCompressedInt32(100000))
	b.ConstField(c, "Mask", b.Prim(metadata.TagU4), testkit.U32(0xdeadbeef))
	b.Size(c, 0x10, 8)

	m, _ := build(t, newBuilder(t, b), c)
	f := field(t, m.Members[0])
	if f.Storage != model.StorageConst || f.Default == nil || f.Default.Int() != -7 {
		t.Fatalf("unexpected constant %+v", f)
	}
	if f := field(t, m.Members[1]); f.Default == nil || f.Default.Int() != 100000 {
		t.Fatalf("multi-byte compressed I4 = %+v", f.Default)
	}
	if f := field(t, m.Members[2]); f.Default == nil || f.Default.Kind != model.ValueUint || f.Default.Bits != 0xdeadbeef {
		t.Fatalf("fixed-width U4 = %+v", f.Default)
	}

	b = testkit.NewSnapshot()
	c = b.Class("Game", "Broken")
	weird := b.AddType(metadata.TypeRef{Tag: metadata.Tag(0x41)})
	b.ConstField(c, "Odd", weird, []byte{1})
	b.Size(c, 0x10, 8)

	bl := newBuilder(t, b)
	_, bag, err := buildID(t, bl, bl.Env().Keys.Intern(types.Key{Def: c}))
	if !errors.Is(err, model.ErrUnknownConstantTag) {
		t.Fatalf("unknown constant tags fail the type, got %v", err)
	}
	if !hasCode(bag, diag.ConstUnknownTag) {
		t.Fatalf("the constant failure must be reported")
	}
}

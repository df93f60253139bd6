package testkit

import (
	"encoding/binary"

	"fortio.org/safecast"

	"nativebind/internal/metadata"
)

// Snap builds small metadata snapshots for tests.
type Snap struct {
	S *metadata.Snapshot

	Object    metadata.TypeDefIndex
	ValueType metadata.TypeDefIndex
	EnumBase  metadata.TypeDefIndex
	String    metadata.TypeDefIndex

	prims map[metadata.Tag]metadata.TypeIndex
}

// NewSnapshot seeds System.Object, System.ValueType, System.Enum and
// System.String.
func NewSnapshot() *Snap {
	b := &Snap{
		S:     &metadata.Snapshot{Schema: metadata.SchemaVersion},
		prims: make(map[metadata.Tag]metadata.TypeIndex),
	}
	b.Object = b.addDef(metadata.TypeDef{Name: "Object", Namespace: "System", Parent: metadata.NoType}, metadata.TagClass)
	b.ValueType = b.Class("System", "ValueType")
	b.EnumBase = b.addDef(metadata.TypeDef{Name: "Enum", Namespace: "System", Parent: b.Ref(b.ValueType)}, metadata.TagClass)
	b.String = b.Class("System", "String")
	return b
}

func conv[T ~uint32](n int) T {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(err)
	}
	return T(v)
}

// AddType appends a raw type reference.
func (b *Snap) AddType(ref metadata.TypeRef) metadata.TypeIndex {
	if ref.Def == 0 && !ref.Tag.IsDefinitionRef() {
		ref.Def = metadata.NoTypeDef
	}
	b.S.Types = append(b.S.Types, ref)
	return conv[metadata.TypeIndex](len(b.S.Types) - 1)
}

func (b *Snap) addDef(def metadata.TypeDef, tag metadata.Tag) metadata.TypeDefIndex {
	idx := conv[metadata.TypeDefIndex](len(b.S.TypeDefs))
	def.Declaring = metadata.NoType
	def.Element = metadata.NoType
	def.Generic = metadata.NoContainer
	b.S.TypeDefs = append(b.S.TypeDefs, def)
	b.S.TypeDefs[idx].ByVal = b.AddType(metadata.TypeRef{Tag: tag, Def: idx, ValueType: def.ValueType})
	return idx
}

// Ref returns the by-value reference of a definition.
func (b *Snap) Ref(def metadata.TypeDefIndex) metadata.TypeIndex {
	return b.S.TypeDefs[def].ByVal
}

// Class adds a reference type deriving from System.Object.
func (b *Snap) Class(ns, name string) metadata.TypeDefIndex {
	return b.addDef(metadata.TypeDef{Name: name, Namespace: ns, Parent: b.Ref(b.Object)}, metadata.TagClass)
}

// Derived adds a reference type with an explicit parent reference.
func (b *Snap) Derived(ns, name string, parent metadata.TypeIndex) metadata.TypeDefIndex {
	return b.addDef(metadata.TypeDef{Name: name, Namespace: ns, Parent: parent}, metadata.TagClass)
}

// Orphan adds a reference type without a parent.
func (b *Snap) Orphan(ns, name string) metadata.TypeDefIndex {
	return b.addDef(metadata.TypeDef{Name: name, Namespace: ns, Parent: metadata.NoType}, metadata.TagClass)
}

// Struct adds a value type.
func (b *Snap) Struct(ns, name string) metadata.TypeDefIndex {
	return b.addDef(metadata.TypeDef{Name: name, Namespace: ns, ValueType: true, Parent: b.Ref(b.ValueType)}, metadata.TagValueType)
}

// Enum adds an enum backed by the given integer tag, with its value__ field.
func (b *Snap) Enum(ns, name string, underlying metadata.Tag) metadata.TypeDefIndex {
	idx := b.addDef(metadata.TypeDef{Name: name, Namespace: ns, ValueType: true, Enum: true, Parent: b.Ref(b.EnumBase)}, metadata.TagValueType)
	b.S.TypeDefs[idx].Element = b.Prim(underlying)
	b.Field(idx, "value__", b.Prim(underlying))
	return idx
}

// Interface adds an interface type.
func (b *Snap) Interface(ns, name string) metadata.TypeDefIndex {
	return b.addDef(metadata.TypeDef{Name: name, Namespace: ns, Flags: metadata.TypeAttrInterface, Parent: metadata.NoType}, metadata.TagClass)
}

// Explicit marks a definition as explicit layout.
func (b *Snap) Explicit(def metadata.TypeDefIndex) {
	b.S.TypeDefs[def].Flags = b.S.TypeDefs[def].Flags&^metadata.TypeAttrLayoutMask | metadata.TypeAttrExplicit
}

// Nest makes inner a nested type of outer.
func (b *Snap) Nest(outer, inner metadata.TypeDefIndex) {
	b.S.TypeDefs[inner].Declaring = b.Ref(outer)
	b.S.TypeDefs[outer].Nested = append(b.S.TypeDefs[outer].Nested, inner)
}

// Implements adds an interface to a definition.
func (b *Snap) Implements(def metadata.TypeDefIndex, iface metadata.TypeIndex) {
	b.S.TypeDefs[def].Interfaces = append(b.S.TypeDefs[def].Interfaces, iface)
}

// Prim returns the shared reference for a primitive tag.
func (b *Snap) Prim(tag metadata.Tag) metadata.TypeIndex {
	if i, ok := b.prims[tag]; ok {
		return i
	}
	ref := metadata.TypeRef{Tag: tag, Def: metadata.NoTypeDef}
	switch tag {
	case metadata.TagString:
		ref.Def = b.String
	case metadata.TagObject:
		ref.Def = b.Object
	case metadata.TagVoid:
	default:
		ref.ValueType = true
	}
	i := b.AddType(ref)
	b.prims[tag] = i
	return i
}

// WithAttrs clones a reference with attribute bits set.
func (b *Snap) WithAttrs(i metadata.TypeIndex, attrs uint16) metadata.TypeIndex {
	ref := b.S.Types[i]
	ref.Attrs = attrs
	return b.AddType(ref)
}

// SzArray adds a single-dimension array reference.
func (b *Snap) SzArray(elem metadata.TypeIndex) metadata.TypeIndex {
	return b.AddType(metadata.TypeRef{Tag: metadata.TagSzArray, Elem: elem})
}

// Ptr adds a pointer reference.
func (b *Snap) Ptr(elem metadata.TypeIndex) metadata.TypeIndex {
	return b.AddType(metadata.TypeRef{Tag: metadata.TagPtr, Elem: elem})
}

// Generic gives a definition a generic container and returns its Var refs.
func (b *Snap) Generic(def metadata.TypeDefIndex, params ...string) []metadata.TypeIndex {
	return b.container(uint32(def), false, func(c metadata.ContainerIndex) { b.S.TypeDefs[def].Generic = c }, metadata.TagVar, params)
}

// GenericMethod gives a method a generic container and returns its MVar refs.
func (b *Snap) GenericMethod(m metadata.MethodIndex, params ...string) []metadata.TypeIndex {
	return b.container(uint32(m), true, func(c metadata.ContainerIndex) { b.S.Methods[m].Generic = c }, metadata.TagMVar, params)
}

func (b *Snap) container(owner uint32, isMethod bool, set func(metadata.ContainerIndex), tag metadata.Tag, params []string) []metadata.TypeIndex {
	c := conv[metadata.ContainerIndex](len(b.S.GenericContainers))
	gc := metadata.GenericContainer{Owner: owner, IsMethod: isMethod}
	refs := make([]metadata.TypeIndex, 0, len(params))
	for n, name := range params {
		p := conv[metadata.GenericParamIndex](len(b.S.GenericParams))
		num, err := safecast.Conv[uint16](n)
		if err != nil {
			panic(err)
		}
		b.S.GenericParams = append(b.S.GenericParams, metadata.GenericParam{Name: name, Num: num, Owner: c})
		gc.Params = append(gc.Params, p)
		refs = append(refs, b.AddType(metadata.TypeRef{Tag: tag, Param: p}))
	}
	b.S.GenericContainers = append(b.S.GenericContainers, gc)
	set(c)
	return refs
}

// Inst registers a generic class for def with args and returns its reference.
func (b *Snap) Inst(def metadata.TypeDefIndex, args ...metadata.TypeIndex) metadata.TypeIndex {
	inst := conv[metadata.GenericInstIndex](len(b.S.GenericInsts))
	b.S.GenericInsts = append(b.S.GenericInsts, metadata.GenericInst{Types: args})
	gc := conv[metadata.GenericClassIndex](len(b.S.GenericClasses))
	b.S.GenericClasses = append(b.S.GenericClasses, metadata.GenericClass{Type: b.Ref(def), Class: inst})
	return b.AddType(metadata.TypeRef{Tag: metadata.TagGenericInst, Class: gc, ValueType: b.S.TypeDefs[def].ValueType})
}

// ClassOf returns the generic class behind an Inst reference.
func (b *Snap) ClassOf(i metadata.TypeIndex) metadata.GenericClassIndex {
	return b.S.Types[i].Class
}

// Field adds an instance field.
func (b *Snap) Field(def metadata.TypeDefIndex, name string, typ metadata.TypeIndex) int {
	b.S.TypeDefs[def].Fields = append(b.S.TypeDefs[def].Fields, metadata.FieldDef{Name: name, Type: typ})
	return len(b.S.TypeDefs[def].Fields) - 1
}

// StaticField adds a static field.
func (b *Snap) StaticField(def metadata.TypeDefIndex, name string, typ metadata.TypeIndex) int {
	return b.Field(def, name, b.WithAttrs(typ, metadata.FieldAttrStatic))
}

// ConstField adds a literal field whose default is blob, typed as typ.
func (b *Snap) ConstField(def metadata.TypeDefIndex, name string, typ metadata.TypeIndex, blob []byte) int {
	n := b.Field(def, name, b.WithAttrs(typ, metadata.FieldAttrStatic|metadata.FieldAttrLiteral))
	b.S.TypeDefs[def].Fields[n].Default = b.Blob(typ, blob)
	return n
}

// Blob appends constant data and returns its locator.
func (b *Snap) Blob(typ metadata.TypeIndex, data []byte) *metadata.ConstantBlob {
	if data == nil {
		return &metadata.ConstantBlob{Type: typ, Offset: -1}
	}
	off, err := safecast.Conv[int32](len(b.S.DefaultData))
	if err != nil {
		panic(err)
	}
	b.S.DefaultData = append(b.S.DefaultData, data...)
	return &metadata.ConstantBlob{Type: typ, Offset: off}
}

// Method adds a method to def.
func (b *Snap) Method(def metadata.TypeDefIndex, name string, flags uint16, ret metadata.TypeIndex, params ...metadata.ParamDef) metadata.MethodIndex {
	m := conv[metadata.MethodIndex](len(b.S.Methods))
	b.S.Methods = append(b.S.Methods, metadata.MethodDef{
		Name:      name,
		Declaring: def,
		Return:    ret,
		Params:    params,
		Flags:     flags,
		Generic:   metadata.NoContainer,
	})
	b.S.TypeDefs[def].Methods = append(b.S.TypeDefs[def].Methods, m)
	return m
}

// Property adds a property with accessor methods (NoMethod when absent).
func (b *Snap) Property(def metadata.TypeDefIndex, name string, get, set metadata.MethodIndex) {
	b.S.TypeDefs[def].Properties = append(b.S.TypeDefs[def].Properties, metadata.PropertyDef{Name: name, Getter: get, Setter: set})
}

// MethodSpec records a generic method instantiation request.
func (b *Snap) MethodSpec(m metadata.MethodIndex, classInst metadata.GenericInstIndex, args ...metadata.TypeIndex) {
	inst := conv[metadata.GenericInstIndex](len(b.S.GenericInsts))
	b.S.GenericInsts = append(b.S.GenericInsts, metadata.GenericInst{Types: args})
	b.S.MethodSpecs = append(b.S.MethodSpecs, metadata.MethodSpec{Method: m, ClassInst: classInst, MethodInst: inst})
}

// Size records size information for a definition.
func (b *Snap) Size(def metadata.TypeDefIndex, size uint32, align uint8, offsets ...uint32) *metadata.SizeEntry {
	return b.ClassSize(def, metadata.NoClass, size, align, offsets...)
}

// ClassSize records size information for a generic class.
func (b *Snap) ClassSize(def metadata.TypeDefIndex, class metadata.GenericClassIndex, size uint32, align uint8, offsets ...uint32) *metadata.SizeEntry {
	b.S.Sizes = append(b.S.Sizes, metadata.SizeEntry{
		Def:              def,
		Class:            class,
		InstanceSize:     size,
		NaturalAlignment: align,
		FieldOffsets:     offsets,
	})
	return &b.S.Sizes[len(b.S.Sizes)-1]
}

// Deny adds a full name to the snapshot deny-list.
func (b *Snap) Deny(full string) {
	b.S.Deny = append(b.S.Deny, full)
}

// U32 encodes a fixed-width little-endian 32-bit value, the U4 and R4
// constant form. I4 constants are compressed; use
// model.EncodeCompressedInt32 for those.
func U32(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}

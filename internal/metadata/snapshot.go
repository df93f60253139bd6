package metadata

// Indices into the global snapshot tables. NoIndex marks an absent link.
type (
	TypeDefIndex      uint32
	TypeIndex         uint32
	MethodIndex       uint32
	ContainerIndex    uint32
	GenericParamIndex uint32
	GenericClassIndex uint32
	GenericInstIndex  uint32
)

// NoIndex is the sentinel for every index kind.
const NoIndex = ^uint32(0)

const (
	NoTypeDef   = TypeDefIndex(NoIndex)
	NoType      = TypeIndex(NoIndex)
	NoMethod    = MethodIndex(NoIndex)
	NoContainer = ContainerIndex(NoIndex)
	NoClass     = GenericClassIndex(NoIndex)
	NoInst      = GenericInstIndex(NoIndex)
)

// Type definition flags.
const (
	TypeAttrLayoutMask = 0x00000018
	TypeAttrSequential = 0x00000008
	TypeAttrExplicit   = 0x00000010
	TypeAttrInterface  = 0x00000020
)

// Field, method and parameter attribute bits.
const (
	FieldAttrStatic  = 0x0010
	FieldAttrLiteral = 0x0040

	MethodAttrStatic   = 0x0010
	MethodAttrVirtual  = 0x0040
	MethodAttrAbstract = 0x0400

	ParamAttrIn       = 0x0001
	ParamAttrOut      = 0x0002
	ParamAttrOptional = 0x0010
)

// SchemaVersion is bumped whenever the snapshot encoding changes.
const SchemaVersion uint16 = 1

// Snapshot is the pre-parsed, read-only metadata of one runtime image.
type Snapshot struct {
	Schema uint16

	TypeDefs          []TypeDef
	Types             []TypeRef
	Methods           []MethodDef
	GenericContainers []GenericContainer
	GenericParams     []GenericParam
	GenericClasses    []GenericClass
	GenericInsts      []GenericInst
	MethodSpecs       []MethodSpec

	// DefaultData is the constant blob heap.
	DefaultData []byte

	Sizes []SizeEntry
	Deny  []string
}

// TypeDef is a type definition record.
type TypeDef struct {
	Name      string
	Namespace string
	Flags     uint32
	ValueType bool
	Enum      bool

	ByVal     TypeIndex // reference naming this definition
	Parent    TypeIndex
	Declaring TypeIndex
	Element   TypeIndex // underlying type of an enum
	Generic   ContainerIndex

	Fields     []FieldDef
	Methods    []MethodIndex
	Properties []PropertyDef
	Interfaces []TypeIndex
	Nested     []TypeDefIndex
}

// IsInterface reports the interface flag.
func (d *TypeDef) IsInterface() bool { return d.Flags&TypeAttrInterface != 0 }

// IsExplicit reports explicit (author-specified offset) layout.
func (d *TypeDef) IsExplicit() bool {
	return d.Flags&TypeAttrLayoutMask == TypeAttrExplicit
}

// TypeRef is one registration-table type reference.
type TypeRef struct {
	Tag       Tag
	Def       TypeDefIndex      // definition-shaped tags
	Elem      TypeIndex         // Ptr, ByRef, SzArray, Array
	Class     GenericClassIndex // GenericInst
	Param     GenericParamIndex // Var, MVar
	ValueType bool
	ByRef     bool
	Attrs     uint16
}

// IsStatic reports a static field reference.
func (r *TypeRef) IsStatic() bool { return r.Attrs&FieldAttrStatic != 0 }

// IsConst reports a literal field reference.
func (r *TypeRef) IsConst() bool { return r.Attrs&FieldAttrLiteral != 0 }

// FieldDef is a field of a type definition.
type FieldDef struct {
	Name    string
	Type    TypeIndex
	Default *ConstantBlob
}

// ConstantBlob locates a typed constant in DefaultData. Offset -1 is null.
type ConstantBlob struct {
	Type   TypeIndex
	Offset int32
}

// PropertyDef pairs accessor methods by global method index.
type PropertyDef struct {
	Name   string
	Getter MethodIndex
	Setter MethodIndex
}

// MethodDef is a method declaration.
type MethodDef struct {
	Name      string
	Declaring TypeDefIndex
	Return    TypeIndex
	Params    []ParamDef
	Flags     uint16
	Generic   ContainerIndex
}

// IsStatic reports a static method.
func (m *MethodDef) IsStatic() bool { return m.Flags&MethodAttrStatic != 0 }

// ParamDef is a method parameter.
type ParamDef struct {
	Name    string
	Type    TypeIndex
	Default *ConstantBlob
}

// GenericContainer owns the generic parameters of a type or method.
type GenericContainer struct {
	Owner    uint32 // TypeDefIndex or MethodIndex
	IsMethod bool
	Params   []GenericParamIndex
}

// GenericParam is one declared generic parameter.
type GenericParam struct {
	Name        string
	Num         uint16
	Owner       ContainerIndex
	Constraints []TypeIndex
	Flags       uint16
}

// GenericClass is a runtime-resolved generic type instance.
type GenericClass struct {
	Type  TypeIndex // the generic definition
	Class GenericInstIndex
}

// GenericInst is a concrete argument list.
type GenericInst struct {
	Types []TypeIndex
}

// MethodSpec requests one generic method instantiation.
type MethodSpec struct {
	Method     MethodIndex
	ClassInst  GenericInstIndex
	MethodInst GenericInstIndex
}

// SizeEntry is the externally supplied size information of one type.
// Class is NoClass for plain definitions. FieldOffsets are raw runtime
// offsets indexed by field ordinal; value type offsets include the
// object header.
type SizeEntry struct {
	Def              TypeDefIndex
	Class            GenericClassIndex
	InstanceSize     uint32
	NaturalAlignment uint8
	Packing          uint8
	HasPacking       bool
	FieldOffsets     []uint32
}

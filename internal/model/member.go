package model

import (
	"nativebind/internal/metadata"
	"nativebind/internal/names"
)

// Member is one entry of a model's member list.
type Member interface {
	MemberName() string
	member()
}

// Storage classifies a field.
type Storage uint8

const (
	StorageInstance Storage = iota
	StorageStatic
	StorageConst
)

func (s Storage) String() string {
	switch s {
	case StorageStatic:
		return "static"
	case StorageConst:
		return "const"
	}
	return "instance"
}

// Field is a data member. Synthesized padding fields carry PadBytes and the
// uint8 element type.
type Field struct {
	Name      string
	Type      names.Name
	TypeRef   metadata.TypeIndex
	Offset    uint32
	HasOffset bool
	Size      uint32
	Storage   Storage
	Default   *Value
	PadBytes  uint32
	ValueType bool
}

// IsPadding reports a synthesized byte-array field.
func (f *Field) IsPadding() bool { return f.PadBytes > 0 }

// End is the first byte past the field.
func (f *Field) End() uint32 { return f.Offset + f.Size }

// PadField synthesizes a byte array of n bytes at off.
func PadField(name string, off, n uint32) *Field {
	return &Field{
		Name:      name,
		Type:      names.Name{Name: "uint8_t"},
		TypeRef:   metadata.NoType,
		Offset:    off,
		HasOffset: true,
		Size:      n,
		PadBytes:  n,
		ValueType: true,
	}
}

// Property pairs accessor method names. Backing is set on properties
// synthesized over an instance field and names the renamed field.
type Property struct {
	Name      string
	Type      names.Name
	Getter    string
	Setter    string
	Indexable bool
	Instance  bool
	Backing   string
}

// Param is a method parameter.
type Param struct {
	Name    string
	Type    names.Name
	Default *Value
}

// Method is a declared method. Field accessors have no metadata method:
// Index is metadata.NoMethod and Backing names the field they access.
type Method struct {
	Name     string
	Return   names.Name
	Params   []Param
	Template *GenericTemplate
	Instance bool
	Virtual  bool
	Index    metadata.MethodIndex
	Backing  string
}

// IsAccessor reports a synthesized field accessor.
func (m *Method) IsAccessor() bool { return m.Backing != "" }

// Constructor is a declared instance constructor.
type Constructor struct {
	Params   []Param
	Template *GenericTemplate
	Index    metadata.MethodIndex
}

// Union overlays its members at one offset.
type Union struct {
	Members []Member
	Offset  uint32
}

// Struct groups members laid out sequentially with the given packing.
// Packing 0 means natural.
type Struct struct {
	Members []Member
	Packing uint8
}

func (f *Field) MemberName() string       { return f.Name }
func (p *Property) MemberName() string    { return p.Name }
func (m *Method) MemberName() string      { return m.Name }
func (c *Constructor) MemberName() string { return ".ctor" }
func (u *Union) MemberName() string       { return "" }
func (s *Struct) MemberName() string      { return "" }

func (*Field) member()       {}
func (*Property) member()    {}
func (*Method) member()      {}
func (*Constructor) member() {}
func (*Union) member()       {}
func (*Struct) member()      {}

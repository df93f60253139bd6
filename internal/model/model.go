// Package model holds the structural description of one managed type, ready
// for a backend to emit.
package model

import (
	"nativebind/internal/metadata"
	"nativebind/internal/names"
	"nativebind/internal/types"
)

// Kind classifies a type model.
type Kind uint8

const (
	KindReference Kind = iota
	KindValue
	KindEnum
	KindInterface
)

func (k Kind) String() string {
	switch k {
	case KindReference:
		return "reference"
	case KindValue:
		return "value"
	case KindEnum:
		return "enum"
	case KindInterface:
		return "interface"
	}
	return "unknown"
}

// SizeInfo is the size data the layout phase works from.
type SizeInfo struct {
	InstanceSize     uint32
	NaturalAlignment uint8
	CalculatedSize   uint32
	Packing          *uint8
}

// GenericTemplate lists the parameters a model is emitted over.
type GenericTemplate struct {
	Params []names.TemplateParam
}

// Names returns the parameter names in order.
func (t *GenericTemplate) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Params))
	for i, p := range t.Params {
		out[i] = p.Name
	}
	return out
}

// TemplateOf builds a template of unconstrained parameters.
func TemplateOf(params []string) *GenericTemplate {
	if len(params) == 0 {
		return nil
	}
	t := &GenericTemplate{Params: make([]names.TemplateParam, len(params))}
	for i, p := range params {
		t.Params[i] = names.TemplateParam{Name: p}
	}
	return t
}

// MethodInstance is one concrete instantiation of a generic method.
type MethodInstance struct {
	Method metadata.MethodIndex
	Name   string
	Args   []names.Name
	Return names.Name
	Params []Param
}

// TypeModel is the structural model of one key. It is immutable once the
// driver hands it out.
type TypeModel struct {
	Key   types.Key
	KeyID types.KeyID
	Def   metadata.TypeDefIndex
	Name  names.Name
	Kind  Kind

	Template   *GenericTemplate
	Parent     *names.Name
	Interfaces []names.Name
	Nested     []types.KeyID
	Members    []Member
	Size       *SizeInfo
	Explicit   bool

	// InstanceOf is the generic definition of an instantiation.
	InstanceOf types.KeyID
	// SharedWith is the instantiation whose emitted body this one reuses.
	SharedWith types.KeyID
	// Identity is the widened instantiation identity, if any.
	Identity string

	MethodInstances []MethodInstance
}

// IsValueType reports value and enum models.
func (m *TypeModel) IsValueType() bool {
	return m != nil && (m.Kind == KindValue || m.Kind == KindEnum)
}

// IsTemplate reports an unspecialized generic definition.
func (m *TypeModel) IsTemplate() bool {
	return m != nil && m.Template != nil && !m.Key.IsInstance() && m.InstanceOf == types.NoKeyID
}

// Fields returns the top-level field members in order.
func (m *TypeModel) Fields() []*Field {
	var out []*Field
	for _, mem := range m.Members {
		if f, ok := mem.(*Field); ok {
			out = append(out, f)
		}
	}
	return out
}

// Walk visits every member, descending into unions and structs.
func (m *TypeModel) Walk(fn func(Member) bool) {
	walk(m.Members, fn)
}

func walk(members []Member, fn func(Member) bool) bool {
	for _, mem := range members {
		if !fn(mem) {
			return false
		}
		switch v := mem.(type) {
		case *Union:
			if !walk(v.Members, fn) {
				return false
			}
		case *Struct:
			if !walk(v.Members, fn) {
				return false
			}
		}
	}
	return true
}

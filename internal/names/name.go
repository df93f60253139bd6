package names

import (
	"slices"
	"strings"
)

// Name is a structured, backend-neutral type name.
type Name struct {
	Namespace      string
	DeclaringTypes []string // enclosing types, outermost first
	Name           string
	Args           []Name // spliced generic arguments
	IsPointer      bool   // pointer/handle shaped
	Generic        bool   // the definition declares generic parameters
}

// String renders "Ns.Outer/Name<A, B>*".
func (n Name) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n Name) write(sb *strings.Builder) {
	if n.Namespace != "" {
		sb.WriteString(n.Namespace)
		sb.WriteByte('.')
	}
	for _, d := range n.DeclaringTypes {
		sb.WriteString(d)
		sb.WriteByte('/')
	}
	sb.WriteString(n.Name)
	if len(n.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			a.write(sb)
		}
		sb.WriteByte('>')
	}
	if n.IsPointer {
		sb.WriteByte('*')
	}
}

// Clone returns a deep copy.
func (n Name) Clone() Name {
	out := n
	out.DeclaringTypes = slices.Clone(n.DeclaringTypes)
	if n.Args != nil {
		out.Args = make([]Name, len(n.Args))
		for i, a := range n.Args {
			out.Args[i] = a.Clone()
		}
	}
	return out
}

// Pointer returns a copy with IsPointer set to p.
func (n Name) Pointer(p bool) Name {
	out := n.Clone()
	out.IsPointer = p
	return out
}

// Equal compares structurally.
func (n Name) Equal(o Name) bool {
	if n.Namespace != o.Namespace || n.Name != o.Name || n.IsPointer != o.IsPointer || n.Generic != o.Generic {
		return false
	}
	if !slices.Equal(n.DeclaringTypes, o.DeclaringTypes) || len(n.Args) != len(o.Args) {
		return false
	}
	for i := range n.Args {
		if !n.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Built-in names.
const (
	UnknownTypeName = "/* UNKNOWN TYPE! */"

	rootObjectName  = "ObjectHandle"
	valueHandleName = "ValueHandle"
	enumHandleName  = "EnumHandle"
	ifaceHandleName = "InterfaceHandle"
)

// RootObject is the opaque handle of the root managed object type.
func RootObject() Name { return Name{Name: rootObjectName, IsPointer: true} }

// IsRootObject reports whether n is the root object handle.
func IsRootObject(n Name) bool { return n.Namespace == "" && n.Name == rootObjectName }

// ValueHandle is the opaque stand-in for an excluded value type.
func ValueHandle() Name { return Name{Name: valueHandleName} }

// EnumHandle is the opaque stand-in for an excluded enum.
func EnumHandle() Name { return Name{Name: enumHandleName} }

// InterfaceHandle is the opaque stand-in for an excluded interface.
func InterfaceHandle() Name { return Name{Name: ifaceHandleName, IsPointer: true} }

// ArrayOf wraps elem in the array handle with its element and storage slots.
func ArrayOf(elem Name) Name {
	storage := Name{Name: "Array", Args: []Name{elem.Clone()}, IsPointer: true}
	return Name{Name: "ArrayHandle", Args: []Name{elem, storage}}
}

// PtrOf wraps elem in a raw pointer name.
func PtrOf(elem Name) Name { return Name{Name: "Ptr", Args: []Name{elem}} }

// ByRefOf wraps elem in a by-reference name; constant for in-parameters.
func ByRefOf(elem Name, constant bool) Name {
	if constant {
		return Name{Name: "ByRefConst", Args: []Name{elem}}
	}
	return Name{Name: "ByRef", Args: []Name{elem}}
}

// Literal names a generic parameter by its declared name.
func Literal(param string) Name { return Name{Name: param} }

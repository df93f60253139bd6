package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports a snapshot whose tables reference missing rows.
var ErrMalformed = errors.New("malformed metadata snapshot")

// Def returns the type definition at i.
func (s *Snapshot) Def(i TypeDefIndex) (*TypeDef, bool) {
	if s == nil || uint64(i) >= uint64(len(s.TypeDefs)) {
		return nil, false
	}
	return &s.TypeDefs[i], true
}

// Type returns the type reference at i.
func (s *Snapshot) Type(i TypeIndex) (*TypeRef, bool) {
	if s == nil || uint64(i) >= uint64(len(s.Types)) {
		return nil, false
	}
	return &s.Types[i], true
}

// Method returns the method at i.
func (s *Snapshot) Method(i MethodIndex) (*MethodDef, bool) {
	if s == nil || uint64(i) >= uint64(len(s.Methods)) {
		return nil, false
	}
	return &s.Methods[i], true
}

// Container returns the generic container at i.
func (s *Snapshot) Container(i ContainerIndex) (*GenericContainer, bool) {
	if s == nil || uint64(i) >= uint64(len(s.GenericContainers)) {
		return nil, false
	}
	return &s.GenericContainers[i], true
}

// Param returns the generic parameter at i.
func (s *Snapshot) Param(i GenericParamIndex) (*GenericParam, bool) {
	if s == nil || uint64(i) >= uint64(len(s.GenericParams)) {
		return nil, false
	}
	return &s.GenericParams[i], true
}

// Class returns the generic class at i.
func (s *Snapshot) Class(i GenericClassIndex) (*GenericClass, bool) {
	if s == nil || uint64(i) >= uint64(len(s.GenericClasses)) {
		return nil, false
	}
	return &s.GenericClasses[i], true
}

// Inst returns the generic argument list at i.
func (s *Snapshot) Inst(i GenericInstIndex) (*GenericInst, bool) {
	if s == nil || uint64(i) >= uint64(len(s.GenericInsts)) {
		return nil, false
	}
	return &s.GenericInsts[i], true
}

// DefOf returns the definition a type reference names, following generic
// instances to their generic definition.
func (s *Snapshot) DefOf(i TypeIndex) (TypeDefIndex, bool) {
	ref, ok := s.Type(i)
	if !ok {
		return NoTypeDef, false
	}
	switch {
	case ref.Tag.IsDefinitionRef():
		if ref.Def == NoTypeDef {
			return NoTypeDef, false
		}
		return ref.Def, true
	case ref.Tag == TagGenericInst:
		gc, ok := s.Class(ref.Class)
		if !ok {
			return NoTypeDef, false
		}
		return s.DefOf(gc.Type)
	}
	return NoTypeDef, false
}

// ContainerParams returns the generic parameter names of a container.
func (s *Snapshot) ContainerParams(i ContainerIndex) []string {
	c, ok := s.Container(i)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		if gp, ok := s.Param(p); ok {
			out = append(out, gp.Name)
		}
	}
	return out
}

// Root walks declaring links up to the outermost definition and returns it
// together with the names of the enclosing types, outermost first.
func (s *Snapshot) Root(i TypeDefIndex) (TypeDefIndex, []string) {
	var outer []string
	cur := i
	for range len(s.TypeDefs) {
		def, ok := s.Def(cur)
		if !ok || def.Declaring == NoType {
			break
		}
		parent, ok := s.DefOf(def.Declaring)
		if !ok || parent == cur {
			break
		}
		pdef, _ := s.Def(parent)
		outer = append(outer, pdef.Name)
		cur = parent
	}
	for l, r := 0, len(outer)-1; l < r; l, r = l+1, r-1 {
		outer[l], outer[r] = outer[r], outer[l]
	}
	return cur, outer
}

// FullName renders "Namespace.Outer/Inner" for a definition.
func (s *Snapshot) FullName(i TypeDefIndex) string {
	def, ok := s.Def(i)
	if !ok {
		return fmt.Sprintf("<typedef#%d>", i)
	}
	root, outer := s.Root(i)
	var sb strings.Builder
	if rdef, ok := s.Def(root); ok && rdef.Namespace != "" {
		sb.WriteString(rdef.Namespace)
		sb.WriteByte('.')
	}
	for _, o := range outer {
		sb.WriteString(o)
		sb.WriteByte('/')
	}
	sb.WriteString(def.Name)
	return sb.String()
}

// FindDef looks up a definition by its full name.
func (s *Snapshot) FindDef(full string) (TypeDefIndex, bool) {
	for i := range s.TypeDefs {
		idx := TypeDefIndex(i) //nolint:gosec // bounded by len(TypeDefs)
		if s.FullName(idx) == full {
			return idx, true
		}
	}
	return NoTypeDef, false
}

// Constant returns the tag and the payload bytes of a constant blob.
// A negative offset yields ok with a nil payload (null constant).
func (s *Snapshot) Constant(c ConstantBlob) (Tag, []byte, error) {
	ref, ok := s.Type(c.Type)
	if !ok {
		return TagEnd, nil, fmt.Errorf("%w: constant type #%d", ErrMalformed, c.Type)
	}
	if c.Offset < 0 {
		return ref.Tag, nil, nil
	}
	if int(c.Offset) > len(s.DefaultData) {
		return ref.Tag, nil, fmt.Errorf("%w: constant offset %d out of range", ErrMalformed, c.Offset)
	}
	return ref.Tag, s.DefaultData[c.Offset:], nil
}

// Validate checks that every cross-table link resolves.
func (s *Snapshot) Validate() error {
	var errs []error
	checkType := func(where string, i TypeIndex) {
		if i == NoType {
			return
		}
		if _, ok := s.Type(i); !ok {
			errs = append(errs, fmt.Errorf("%w: %s references type #%d", ErrMalformed, where, i))
		}
	}
	for i := range s.TypeDefs {
		def := &s.TypeDefs[i]
		where := fmt.Sprintf("typedef #%d (%s)", i, def.Name)
		checkType(where, def.ByVal)
		checkType(where, def.Parent)
		checkType(where, def.Declaring)
		checkType(where, def.Element)
		for _, f := range def.Fields {
			checkType(where+" field "+f.Name, f.Type)
		}
		for _, it := range def.Interfaces {
			checkType(where, it)
		}
		for _, m := range def.Methods {
			if _, ok := s.Method(m); !ok {
				errs = append(errs, fmt.Errorf("%w: %s references method #%d", ErrMalformed, where, m))
			}
		}
		for _, n := range def.Nested {
			if _, ok := s.Def(n); !ok {
				errs = append(errs, fmt.Errorf("%w: %s references nested typedef #%d", ErrMalformed, where, n))
			}
		}
	}
	for i := range s.Types {
		ref := &s.Types[i]
		where := fmt.Sprintf("type #%d", i)
		switch ref.Tag {
		case TagPtr, TagByRef, TagSzArray, TagArray:
			checkType(where, ref.Elem)
		case TagGenericInst:
			if _, ok := s.Class(ref.Class); !ok {
				errs = append(errs, fmt.Errorf("%w: %s references generic class #%d", ErrMalformed, where, ref.Class))
			}
		case TagVar, TagMVar:
			if _, ok := s.Param(ref.Param); !ok {
				errs = append(errs, fmt.Errorf("%w: %s references generic param #%d", ErrMalformed, where, ref.Param))
			}
		}
	}
	for i := range s.GenericClasses {
		gc := &s.GenericClasses[i]
		checkType(fmt.Sprintf("generic class #%d", i), gc.Type)
		if _, ok := s.Inst(gc.Class); !ok {
			errs = append(errs, fmt.Errorf("%w: generic class #%d references inst #%d", ErrMalformed, i, gc.Class))
		}
	}
	for i := range s.GenericInsts {
		for _, t := range s.GenericInsts[i].Types {
			checkType(fmt.Sprintf("generic inst #%d", i), t)
		}
	}
	return errors.Join(errs...)
}

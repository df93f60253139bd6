package types

import (
	"fmt"
	"strconv"
	"strings"

	"nativebind/internal/metadata"
)

// KeyID is the arena index of an interned Key.
type KeyID uint32

// NoKeyID marks an absent key.
const NoKeyID KeyID = 0

// Key identifies a type definition, or a definition instantiated with
// concrete generic arguments. Args is the canonical argument string and is
// empty for plain definitions.
type Key struct {
	Def  metadata.TypeDefIndex
	Args string
}

// IsInstance reports whether the key carries generic arguments.
func (k Key) IsInstance() bool { return k.Args != "" }

// Definition returns the key of the generic definition.
func (k Key) Definition() Key { return Key{Def: k.Def} }

func (k Key) String() string {
	if k.Args == "" {
		return "d" + strconv.FormatUint(uint64(k.Def), 10)
	}
	return "d" + strconv.FormatUint(uint64(k.Def), 10) + "[" + k.Args + "]"
}

// maxArgDepth bounds argument nesting so malformed snapshots cannot loop.
const maxArgDepth = 64

// KeyOf returns the key named by a type reference. Arrays, pointers,
// byrefs and generic parameters are not keyed.
func KeyOf(snap *metadata.Snapshot, i metadata.TypeIndex) (Key, bool, error) {
	ref, ok := snap.Type(i)
	if !ok {
		return Key{}, false, fmt.Errorf("%w: type #%d", metadata.ErrMalformed, i)
	}
	switch {
	case ref.Tag.IsDefinitionRef():
		if ref.Def == metadata.NoTypeDef {
			return Key{}, false, nil
		}
		return Key{Def: ref.Def}, true, nil
	case ref.Tag == metadata.TagGenericInst:
		return instanceKey(snap, ref.Class, 0)
	}
	return Key{}, false, nil
}

// ClassKey returns the key of a registered generic class.
func ClassKey(snap *metadata.Snapshot, c metadata.GenericClassIndex) (Key, error) {
	k, _, err := instanceKey(snap, c, 0)
	return k, err
}

func instanceKey(snap *metadata.Snapshot, c metadata.GenericClassIndex, depth int) (Key, bool, error) {
	gc, ok := snap.Class(c)
	if !ok {
		return Key{}, false, fmt.Errorf("%w: generic class #%d", metadata.ErrMalformed, c)
	}
	def, ok := snap.DefOf(gc.Type)
	if !ok {
		return Key{}, false, fmt.Errorf("%w: generic class #%d has no definition", metadata.ErrMalformed, c)
	}
	inst, ok := snap.Inst(gc.Class)
	if !ok {
		return Key{}, false, fmt.Errorf("%w: generic class #%d has no arguments", metadata.ErrMalformed, c)
	}
	args, err := argsKey(snap, inst.Types, nil, depth+1)
	if err != nil {
		return Key{}, false, err
	}
	return Key{Def: def, Args: args}, true, nil
}

// Subst binds the type parameters of one generic scope. Arguments may
// themselves name parameters of Outer.
type Subst struct {
	Args  []metadata.TypeIndex
	Outer *Subst
}

// ArgsKey renders the canonical identity of an argument list.
func ArgsKey(snap *metadata.Snapshot, args []metadata.TypeIndex) (string, error) {
	return argsKey(snap, args, nil, 0)
}

// ArgsKeyIn renders args with type parameters replaced from s.
func ArgsKeyIn(snap *metadata.Snapshot, args []metadata.TypeIndex, s *Subst) (string, error) {
	return argsKey(snap, args, s, 0)
}

// InstanceKeyIn keys def<args> with type parameters replaced from s.
func InstanceKeyIn(snap *metadata.Snapshot, def metadata.TypeDefIndex, args []metadata.TypeIndex, s *Subst) (Key, error) {
	if len(args) == 0 {
		return Key{Def: def}, nil
	}
	a, err := argsKey(snap, args, s, 0)
	if err != nil {
		return Key{}, err
	}
	return Key{Def: def, Args: a}, nil
}

func argsKey(snap *metadata.Snapshot, args []metadata.TypeIndex, s *Subst, depth int) (string, error) {
	if depth > maxArgDepth {
		return "", fmt.Errorf("%w: generic arguments nest deeper than %d", metadata.ErrMalformed, maxArgDepth)
	}
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte('#')
		}
		if err := writeToken(&sb, snap, a, s, depth); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func writeToken(sb *strings.Builder, snap *metadata.Snapshot, i metadata.TypeIndex, s *Subst, depth int) error {
	if depth > maxArgDepth {
		return fmt.Errorf("%w: type #%d nests deeper than %d", metadata.ErrMalformed, i, maxArgDepth)
	}
	ref, ok := snap.Type(i)
	if !ok {
		return fmt.Errorf("%w: type #%d", metadata.ErrMalformed, i)
	}
	switch ref.Tag {
	case metadata.TagClass, metadata.TagValueType, metadata.TagObject, metadata.TagString, metadata.TagTypedByRef:
		if ref.Def == metadata.NoTypeDef {
			sb.WriteString(ref.Tag.String())
			return nil
		}
		sb.WriteByte('d')
		sb.WriteString(strconv.FormatUint(uint64(ref.Def), 10))
	case metadata.TagGenericInst:
		if s == nil {
			k, _, err := instanceKey(snap, ref.Class, depth+1)
			if err != nil {
				return err
			}
			sb.WriteString(k.String())
			return nil
		}
		gc, ok := snap.Class(ref.Class)
		if !ok {
			return fmt.Errorf("%w: generic class #%d", metadata.ErrMalformed, ref.Class)
		}
		def, ok := snap.DefOf(gc.Type)
		inst, ok2 := snap.Inst(gc.Class)
		if !ok || !ok2 {
			return fmt.Errorf("%w: generic class #%d is incomplete", metadata.ErrMalformed, ref.Class)
		}
		args, err := argsKey(snap, inst.Types, s, depth+1)
		if err != nil {
			return err
		}
		sb.WriteString(Key{Def: def, Args: args}.String())
	case metadata.TagSzArray, metadata.TagArray, metadata.TagPtr, metadata.TagByRef:
		if err := writeToken(sb, snap, ref.Elem, s, depth+1); err != nil {
			return err
		}
		switch ref.Tag {
		case metadata.TagSzArray:
			sb.WriteString("[]")
		case metadata.TagArray:
			sb.WriteString("[,]")
		case metadata.TagPtr:
			sb.WriteByte('*')
		default:
			sb.WriteByte('&')
		}
	case metadata.TagVar, metadata.TagMVar:
		num := uint16(0)
		if gp, ok := snap.Param(ref.Param); ok {
			num = gp.Num
		}
		if ref.Tag == metadata.TagVar && s != nil && int(num) < len(s.Args) {
			return writeToken(sb, snap, s.Args[num], s.Outer, depth+1)
		}
		sb.WriteByte('!')
		if ref.Tag == metadata.TagMVar {
			sb.WriteByte('!')
		}
		sb.WriteString(strconv.FormatUint(uint64(num), 10))
	default:
		sb.WriteString(ref.Tag.String())
	}
	return nil
}

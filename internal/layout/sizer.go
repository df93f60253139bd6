package layout

import (
	"fmt"

	"nativebind/internal/metadata"
	"nativebind/internal/types"
)

// Layout is the storage shape of a type. For value types Size and Offsets
// exclude the object header; for reference types they include it.
type Layout struct {
	Size       uint32
	Align      uint8
	Packing    uint8
	HasPacking bool
	// Offsets is indexed like the definition's field list; entries for
	// static fields are meaningless.
	Offsets []uint32
	// Reported is set when the size came from the size table.
	Reported bool
}

// Sizer answers size and alignment queries over one snapshot. It is safe
// for concurrent use and memoizes every computed layout.
type Sizer struct {
	Target Target

	snap  *metadata.Snapshot
	table map[types.Key]*metadata.SizeEntry
	cache *cache
}

// NewSizer indexes the size table of snap.
func NewSizer(snap *metadata.Snapshot, target Target) (*Sizer, error) {
	s := &Sizer{
		Target: target,
		snap:   snap,
		table:  make(map[types.Key]*metadata.SizeEntry, len(snap.Sizes)),
		cache:  newCache(),
	}
	for i := range snap.Sizes {
		e := &snap.Sizes[i]
		k := types.Key{Def: e.Def}
		if e.Class != metadata.NoClass {
			ck, err := types.ClassKey(snap, e.Class)
			if err != nil {
				return nil, fmt.Errorf("size entry %d: %w", i, err)
			}
			k = ck
		}
		if _, dup := s.table[k]; !dup {
			s.table[k] = e
		}
	}
	return s, nil
}

// Entry returns the reported size entry of a key.
func (s *Sizer) Entry(k types.Key) (*metadata.SizeEntry, bool) {
	e, ok := s.table[k]
	return e, ok
}

// Cached reports how many layouts are memoized.
func (s *Sizer) Cached() int { return s.cache.len() }

type layoutState struct {
	stack []types.Key
	index map[types.Key]int
}

func newLayoutState() *layoutState {
	return &layoutState{index: make(map[types.Key]int, 16)}
}

func (s *Sizer) ptrLayout() Layout {
	ptr := s.Target.PtrSize
	if ptr == 0 {
		ptr = 8
	}
	align := s.Target.PtrAlign
	if align == 0 {
		align = uint8(ptr) //nolint:gosec // 4 or 8
	}
	return Layout{Size: ptr, Align: align}
}

func scalar(n uint32) Layout {
	return Layout{Size: n, Align: uint8(n)} //nolint:gosec // n <= 8
}

// SizeOf returns the storage layout of a value of type ref, as embedded in
// a field. sub binds type parameters in scope.
func (s *Sizer) SizeOf(ref metadata.TypeIndex, sub *types.Subst) (Layout, error) {
	l, err := s.sizeOf(ref, sub, newLayoutState())
	if err != nil {
		return l, err
	}
	return l, nil
}

// TypeLayout returns the instance layout of def instantiated with sub.Args.
// sub is nil for non-generic definitions.
func (s *Sizer) TypeLayout(def metadata.TypeDefIndex, sub *types.Subst) (Layout, error) {
	l, err := s.typeLayout(def, sub, newLayoutState())
	if err != nil {
		return l, err
	}
	return l, nil
}

// BaseSize returns the instance size a derived reference type starts from.
// It falls back to the object header when the parent has no usable size.
func (s *Sizer) BaseSize(parent metadata.TypeIndex, sub *types.Subst) uint32 {
	header := s.Target.HeaderSize()
	if parent == metadata.NoType {
		return header
	}
	l, err := s.parentLayout(parent, sub, newLayoutState())
	if err != nil {
		return header
	}
	return max(header, l.Size)
}

func (s *Sizer) missing(name, detail string) *LayoutError {
	return &LayoutError{Kind: ErrMissingSizeInfo, Type: name, Detail: detail}
}

func (s *Sizer) sizeOf(i metadata.TypeIndex, sub *types.Subst, state *layoutState) (Layout, *LayoutError) {
	ref, ok := s.snap.Type(i)
	if !ok {
		return Layout{}, s.missing(fmt.Sprintf("type#%d", i), "reference out of range")
	}
	if ref.ByRef {
		return s.ptrLayout(), nil
	}
	switch ref.Tag {
	case metadata.TagVoid:
		return Layout{Align: 1}, nil
	case metadata.TagBoolean, metadata.TagI1, metadata.TagU1:
		return scalar(1), nil
	case metadata.TagChar, metadata.TagI2, metadata.TagU2:
		return scalar(2), nil
	case metadata.TagI4, metadata.TagU4, metadata.TagR4:
		return scalar(4), nil
	case metadata.TagI8, metadata.TagU8, metadata.TagR8:
		return scalar(8), nil
	case metadata.TagI, metadata.TagU, metadata.TagPtr, metadata.TagFnPtr, metadata.TagByRef,
		metadata.TagString, metadata.TagObject, metadata.TagSzArray, metadata.TagArray:
		return s.ptrLayout(), nil
	case metadata.TagTypedByRef:
		p := s.ptrLayout()
		return Layout{Size: 3 * p.Size, Align: p.Align}, nil
	case metadata.TagVar:
		gp, ok := s.snap.Param(ref.Param)
		if !ok {
			return Layout{}, s.missing(fmt.Sprintf("type#%d", i), "generic parameter out of range")
		}
		if sub == nil || int(gp.Num) >= len(sub.Args) {
			return Layout{}, s.missing(gp.Name, "generic parameter has no argument in scope")
		}
		return s.sizeOf(sub.Args[gp.Num], sub.Outer, state)
	case metadata.TagMVar:
		gp, _ := s.snap.Param(ref.Param)
		name := "method generic parameter"
		if gp != nil {
			name = gp.Name
		}
		return Layout{}, s.missing(name, "method generic parameters have no storage size")
	case metadata.TagClass, metadata.TagValueType:
		if !ref.ValueType || ref.Def == metadata.NoTypeDef {
			return s.ptrLayout(), nil
		}
		return s.typeLayout(ref.Def, nil, state)
	case metadata.TagGenericInst:
		if !ref.ValueType {
			return s.ptrLayout(), nil
		}
		gc, ok := s.snap.Class(ref.Class)
		if !ok {
			return Layout{}, s.missing(fmt.Sprintf("class#%d", ref.Class), "generic class out of range")
		}
		def, ok := s.snap.DefOf(gc.Type)
		inst, ok2 := s.snap.Inst(gc.Class)
		if !ok || !ok2 {
			return Layout{}, s.missing(fmt.Sprintf("class#%d", ref.Class), "generic class is incomplete")
		}
		return s.typeLayout(def, &types.Subst{Args: inst.Types, Outer: sub}, state)
	}
	return Layout{}, s.missing(ref.Tag.String(), "unknown type encoding")
}

func (s *Sizer) keyOf(def metadata.TypeDefIndex, sub *types.Subst) (types.Key, *LayoutError) {
	if sub == nil {
		return types.Key{Def: def}, nil
	}
	k, err := types.InstanceKeyIn(s.snap, def, sub.Args, sub.Outer)
	if err != nil {
		return types.Key{}, s.missing(s.snap.FullName(def), err.Error())
	}
	return k, nil
}

func (s *Sizer) keyName(k types.Key) string {
	if k.Args == "" {
		return s.snap.FullName(k.Def)
	}
	return s.snap.FullName(k.Def) + "[" + k.Args + "]"
}

func (s *Sizer) typeLayout(def metadata.TypeDefIndex, sub *types.Subst, state *layoutState) (Layout, *LayoutError) {
	key, lerr := s.keyOf(def, sub)
	if lerr != nil {
		return Layout{}, lerr
	}
	if cached, ok := s.cache.get(key); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[key]; ok {
		cycle := make([]string, 0, len(state.stack)-idx+1)
		for _, k := range state.stack[idx:] {
			cycle = append(cycle, s.keyName(k))
		}
		cycle = append(cycle, s.keyName(key))
		err := &LayoutError{Kind: ErrRecursiveValueType, Type: s.keyName(key), Cycle: cycle}
		s.cache.put(key, &cacheEntry{Layout: Layout{Align: 1}, Err: err})
		return Layout{Align: 1}, err
	}

	state.index[key] = len(state.stack)
	state.stack = append(state.stack, key)
	layout, err := s.computeLayout(key, def, sub, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, key)

	stored := s.cache.put(key, &cacheEntry{Layout: layout, Err: err})
	return stored.Layout, stored.Err
}

func (s *Sizer) computeLayout(key types.Key, def metadata.TypeDefIndex, sub *types.Subst, state *layoutState) (Layout, *LayoutError) {
	d, ok := s.snap.Def(def)
	if !ok {
		return Layout{}, s.missing(s.keyName(key), "definition out of range")
	}
	if d.Enum {
		if d.Element == metadata.NoType {
			return Layout{}, s.missing(s.keyName(key), "enum without an underlying type")
		}
		return s.sizeOf(d.Element, sub, state)
	}
	if e, ok := s.table[key]; ok {
		if d.ValueType {
			// A reported entry still has to be checked for embedding itself.
			if lerr := s.checkEmbedded(d, sub, state); lerr != nil {
				return Layout{}, lerr
			}
		}
		return s.reported(e, d.ValueType), nil
	}
	if d.IsExplicit() {
		return Layout{}, s.missing(s.keyName(key), "explicit layout requires reported offsets")
	}
	if d.ValueType {
		return s.sequential(d, sub, 0, 0, state)
	}
	start := s.Target.HeaderSize()
	if d.Parent != metadata.NoType {
		pl, lerr := s.parentLayout(d.Parent, sub, state)
		if lerr != nil {
			return Layout{}, lerr
		}
		start = max(start, pl.Size)
	}
	l, lerr := s.sequential(d, sub, start, s.ptrLayout().Align, state)
	if lerr != nil {
		return Layout{}, lerr
	}
	return l, nil
}

func (s *Sizer) parentLayout(parent metadata.TypeIndex, sub *types.Subst, state *layoutState) (Layout, *LayoutError) {
	ref, ok := s.snap.Type(parent)
	if !ok {
		return Layout{}, s.missing(fmt.Sprintf("type#%d", parent), "parent out of range")
	}
	switch ref.Tag {
	case metadata.TagGenericInst:
		gc, ok := s.snap.Class(ref.Class)
		if !ok {
			return Layout{}, s.missing(fmt.Sprintf("class#%d", ref.Class), "generic class out of range")
		}
		def, ok := s.snap.DefOf(gc.Type)
		inst, ok2 := s.snap.Inst(gc.Class)
		if !ok || !ok2 {
			return Layout{}, s.missing(fmt.Sprintf("class#%d", ref.Class), "generic class is incomplete")
		}
		return s.typeLayout(def, &types.Subst{Args: inst.Types, Outer: sub}, state)
	case metadata.TagClass, metadata.TagObject:
		if ref.Def == metadata.NoTypeDef {
			return Layout{Size: s.Target.HeaderSize()}, nil
		}
		return s.typeLayout(ref.Def, nil, state)
	}
	return Layout{Size: s.Target.HeaderSize()}, nil
}

func (s *Sizer) reported(e *metadata.SizeEntry, value bool) Layout {
	header := s.Target.HeaderSize()
	l := Layout{
		Size:       e.InstanceSize,
		Align:      e.NaturalAlignment,
		Packing:    e.Packing,
		HasPacking: e.HasPacking,
		Offsets:    append([]uint32(nil), e.FieldOffsets...),
		Reported:   true,
	}
	if l.Align == 0 {
		l.Align = 1
	}
	if value {
		if l.Size >= header {
			l.Size -= header
		}
		for i, off := range l.Offsets {
			if off >= header {
				l.Offsets[i] = off - header
			}
		}
	}
	return l
}

// checkEmbedded walks value-typed instance fields only for cycle detection.
func (s *Sizer) checkEmbedded(d *metadata.TypeDef, sub *types.Subst, state *layoutState) *LayoutError {
	for _, f := range d.Fields {
		ref, ok := s.snap.Type(f.Type)
		if !ok || ref.IsStatic() || ref.ByRef || !ref.ValueType {
			continue
		}
		if ref.Tag != metadata.TagValueType && ref.Tag != metadata.TagGenericInst {
			continue
		}
		if _, err := s.sizeOf(f.Type, sub, state); err != nil && err.Kind == ErrRecursiveValueType {
			return err
		}
	}
	return nil
}

// sequential lays out instance fields in declaration order from start.
func (s *Sizer) sequential(d *metadata.TypeDef, sub *types.Subst, start uint32, minAlign uint8, state *layoutState) (Layout, *LayoutError) {
	offsets := make([]uint32, len(d.Fields))
	size := start
	align := max(minAlign, 1)
	for i, f := range d.Fields {
		ref, ok := s.snap.Type(f.Type)
		if !ok {
			return Layout{}, s.missing(d.Name, fmt.Sprintf("field %s has no type", f.Name))
		}
		if ref.IsStatic() {
			continue
		}
		fl, err := s.sizeOf(f.Type, sub, state)
		if err != nil {
			return Layout{}, err
		}
		fa := max(fl.Align, 1)
		size = roundUp(size, uint32(fa))
		offsets[i] = size
		size += fl.Size
		align = max(align, fa)
	}
	size = roundUp(size, uint32(align))
	return Layout{Size: size, Align: align, Offsets: offsets}, nil
}

func roundUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

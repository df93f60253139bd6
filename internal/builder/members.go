package builder

import (
	"errors"
	"fmt"

	"nativebind/internal/diag"
	"nativebind/internal/layout"
	"nativebind/internal/metadata"
	"nativebind/internal/model"
	"nativebind/internal/names"
)

// collisionPrefix renames fields that clash with a property.
const collisionPrefix = "_cordl_"

// Instance fields of reference types and explicit value types are reached
// through synthesized accessors; the field itself is renamed.
const (
	backingPrefix = "__cordl_internal_"
	getterPrefix  = "__cordl_internal_get_"
	setterPrefix  = "__cordl_internal_set_"
)

const (
	ctorName  = ".ctor"
	cctorName = ".cctor"
)

func (b *Builder) properties(s *state) error {
	snap := b.env.Snap
	for _, p := range s.def.Properties {
		get, hasGet := snap.Method(p.Getter)
		set, hasSet := snap.Method(p.Setter)
		if !hasGet && !hasSet {
			continue
		}
		if (!hasGet || get.IsStatic()) && (!hasSet || set.IsStatic()) {
			continue
		}
		s.r.SetMember(p.Name)
		prop := &model.Property{Name: p.Name, Instance: true}
		var typ metadata.TypeIndex
		if hasGet {
			prop.Getter = get.Name
			prop.Indexable = len(get.Params) > 0
			typ = get.Return
		}
		if hasSet {
			prop.Setter = set.Name
			if len(set.Params) > 1 {
				prop.Indexable = true
			}
			if !hasGet && len(set.Params) > 0 {
				typ = set.Params[len(set.Params)-1].Type
			}
		}
		if !hasGet && (!hasSet || len(set.Params) == 0) {
			continue
		}
		n, err := s.r.Resolve(s.acc, typ, s.ctx, 0, names.UsageProperty)
		if err != nil {
			return err
		}
		prop.Type = n
		s.props[p.Name] = struct{}{}
		s.m.Members = append(s.m.Members, prop)
	}
	return nil
}

func (b *Builder) fields(s *state) error {
	snap := b.env.Snap
	offsets, err := b.offsets(s)
	if err != nil {
		return err
	}
	wrap := s.m.Kind == model.KindReference || (s.m.Kind == model.KindValue && s.m.Explicit)
	var accessors []model.Member
	for i, f := range s.def.Fields {
		ref, ok := snap.Type(f.Type)
		if !ok {
			return fmt.Errorf("%w: field %s type #%d", metadata.ErrMalformed, f.Name, f.Type)
		}
		s.r.SetMember(f.Name)
		field := &model.Field{
			Name:      f.Name,
			TypeRef:   f.Type,
			ValueType: ref.ValueType,
		}
		switch {
		case ref.IsConst():
			field.Storage = model.StorageConst
		case ref.IsStatic():
			field.Storage = model.StorageStatic
		}
		_, clash := s.props[f.Name]
		wrapped := wrap && !clash && field.Storage == model.StorageInstance
		switch {
		case clash:
			field.Name = collisionPrefix + f.Name
		case wrapped:
			field.Name = backingPrefix + f.Name
		}

		depth := 0
		if field.Storage == model.StorageInstance && ref.ValueType {
			depth = embedDepth
		}
		n, err := s.r.Resolve(s.acc, f.Type, s.ctx, depth, names.UsageField)
		if err != nil {
			return err
		}
		field.Type = n
		if wrapped {
			accessors = append(accessors, fieldAccessors(f.Name, field)...)
		}

		if f.Default != nil {
			v, err := b.constant(s, f.Name, *f.Default)
			if err != nil {
				return err
			}
			field.Default = v
		}
		if field.Storage == model.StorageInstance && !s.m.IsTemplate() {
			l, err := b.sizer.SizeOf(f.Type, s.sub)
			if err != nil {
				return err
			}
			field.Size = l.Size
			if i < len(offsets) {
				field.Offset = offsets[i]
				field.HasOffset = true
			}
		}
		s.m.Members = append(s.m.Members, field)
	}
	s.m.Members = append(s.m.Members, accessors...)
	return nil
}

// fieldAccessors returns the property exposing a backing field under its
// declared name and the getter and setter it dispatches to.
func fieldAccessors(name string, f *model.Field) []model.Member {
	get := &model.Method{
		Name:     getterPrefix + name,
		Return:   f.Type.Clone(),
		Instance: true,
		Index:    metadata.NoMethod,
		Backing:  f.Name,
	}
	set := &model.Method{
		Name:     setterPrefix + name,
		Return:   names.Name{Name: "void"},
		Params:   []model.Param{{Name: "value", Type: f.Type.Clone()}},
		Instance: true,
		Index:    metadata.NoMethod,
		Backing:  f.Name,
	}
	prop := &model.Property{
		Name:     name,
		Type:     f.Type.Clone(),
		Getter:   get.Name,
		Setter:   set.Name,
		Instance: true,
		Backing:  f.Name,
	}
	return []model.Member{prop, get, set}
}

// offsets returns the header-relative instance offsets of s for value
// types and the raw offsets for reference types. Reported offsets below the
// object header are kept raw and reported.
func (b *Builder) offsets(s *state) ([]uint32, error) {
	if s.m.IsTemplate() {
		return nil, nil
	}
	e, ok := b.sizer.Entry(s.key)
	if !ok && s.def.Enum {
		return make([]uint32, len(s.def.Fields)), nil
	}
	if !ok {
		l, err := b.sizer.TypeLayout(s.key.Def, s.sub)
		if err != nil {
			// size reports the failure for types that need a layout.
			return nil, nil
		}
		return l.Offsets, nil
	}
	header := b.sizer.Target.HeaderSize()
	out := make([]uint32, len(e.FieldOffsets))
	for i, raw := range e.FieldOffsets {
		out[i] = raw
		if i >= len(s.def.Fields) {
			continue
		}
		f := s.def.Fields[i]
		ref, ok := b.env.Snap.Type(f.Type)
		if !ok || ref.IsStatic() {
			continue
		}
		switch {
		case raw < header:
			diag.ReportWarning(s.rep, diag.LayoutOffsetBelowBase, s.subject(f.Name),
				fmt.Sprintf("offset 0x%x is below the 0x%x byte object header", raw, header)).Emit()
		case s.def.ValueType:
			out[i] = raw - header
		}
	}
	if len(out) < len(s.def.Fields) {
		for i := len(out); i < len(s.def.Fields); i++ {
			ref, ok := b.env.Snap.Type(s.def.Fields[i].Type)
			if ok && !ref.IsStatic() {
				return nil, &layout.LayoutError{
					Kind:   layout.ErrMissingSizeInfo,
					Type:   s.m.Name.String(),
					Detail: fmt.Sprintf("no reported offset for field %s", s.def.Fields[i].Name),
				}
			}
		}
	}
	return out, nil
}

// constant decodes a default blob. Unknown encodings are fatal; container
// constants decode to an unsupported null.
func (b *Builder) constant(s *state, member string, c metadata.ConstantBlob) (*model.Value, error) {
	snap := b.env.Snap
	tag, blob, err := snap.Constant(c)
	if err != nil {
		diag.ReportError(s.rep, diag.ConstMalformed, s.subject(member), err.Error()).Emit()
		return nil, err
	}
	tag = b.valueTag(c.Type, tag)
	v, err := model.DecodeConstant(tag, blob)
	switch {
	case errors.Is(err, model.ErrUnknownConstantTag):
		diag.ReportError(s.rep, diag.ConstUnknownTag, s.subject(member), err.Error()).Emit()
		return nil, err
	case err != nil:
		diag.ReportError(s.rep, diag.ConstMalformed, s.subject(member), err.Error()).Emit()
		return nil, err
	}
	if v.Unsupported {
		diag.ReportInfo(s.rep, diag.ConstUnsupported, s.subject(member),
			fmt.Sprintf("default of kind %s is not decoded", tag)).Emit()
	}
	return &v, nil
}

// valueTag returns the tag a constant of type typ is encoded with. Enums
// decode as their backing integer and Nullable`1 as its argument.
func (b *Builder) valueTag(typ metadata.TypeIndex, tag metadata.Tag) metadata.Tag {
	snap := b.env.Snap
	switch tag {
	case metadata.TagValueType:
		return b.enumTag(typ, tag)
	case metadata.TagGenericInst:
	default:
		return tag
	}
	ref, _ := snap.Type(typ)
	def, ok := snap.DefOf(typ)
	if !ok || snap.FullName(def) != "System.Nullable`1" {
		return tag
	}
	gc, ok := snap.Class(ref.Class)
	if !ok {
		return tag
	}
	inst, ok := snap.Inst(gc.Class)
	if !ok || len(inst.Types) != 1 {
		return tag
	}
	arg, ok := snap.Type(inst.Types[0])
	if !ok {
		return tag
	}
	if arg.Tag == metadata.TagValueType {
		return b.enumTag(inst.Types[0], arg.Tag)
	}
	return arg.Tag
}

func (b *Builder) enumTag(typ metadata.TypeIndex, tag metadata.Tag) metadata.Tag {
	snap := b.env.Snap
	def, ok := snap.DefOf(typ)
	if !ok {
		return tag
	}
	d, ok := snap.Def(def)
	if !ok || !d.Enum {
		return tag
	}
	if et, ok := snap.Type(d.Element); ok {
		return et.Tag
	}
	return tag
}

func (b *Builder) params(s *state, ps []metadata.ParamDef, ctx *names.GenericContext) ([]model.Param, error) {
	out := make([]model.Param, 0, len(ps))
	for _, p := range ps {
		n, err := s.r.Resolve(s.acc, p.Type, ctx, 0, names.UsageParameter)
		if err != nil {
			return nil, err
		}
		mp := model.Param{Name: p.Name, Type: n}
		if p.Default != nil {
			v, err := b.constant(s, p.Name, *p.Default)
			if err != nil {
				return nil, err
			}
			mp.Default = v
		}
		out = append(out, mp)
	}
	return out, nil
}

func (b *Builder) methods(s *state) error {
	snap := b.env.Snap
	decl := &names.GenericContext{TypeArgs: s.ctx.TypeArgs, Widened: s.ctx.Widened}
	for _, mi := range s.def.Methods {
		m, ok := snap.Method(mi)
		if !ok {
			return fmt.Errorf("%w: method #%d", metadata.ErrMalformed, mi)
		}
		if m.Name == cctorName {
			continue
		}
		s.r.SetMember(m.Name)
		params, err := b.params(s, m.Params, decl)
		if err != nil {
			return err
		}
		tmpl := model.TemplateOf(snap.ContainerParams(m.Generic))
		if m.Name == ctorName && !m.IsStatic() {
			s.m.Members = append(s.m.Members, &model.Constructor{Params: params, Template: tmpl, Index: mi})
			continue
		}
		ret, err := s.r.Resolve(s.acc, m.Return, decl, 0, names.UsageReturn)
		if err != nil {
			return err
		}
		s.m.Members = append(s.m.Members, &model.Method{
			Name:     m.Name,
			Return:   ret,
			Params:   params,
			Template: tmpl,
			Instance: !m.IsStatic(),
			Virtual:  m.Flags&metadata.MethodAttrVirtual != 0,
			Index:    mi,
		})
	}
	return nil
}

func (b *Builder) methodInstances(s *state) error {
	snap := b.env.Snap
	for _, req := range b.methodRequests(s.id) {
		m, ok := snap.Method(req.method)
		if !ok {
			continue
		}
		s.r.SetMember(m.Name)
		ctx := &names.GenericContext{
			TypeArgs:   s.ctx.TypeArgs,
			Widened:    s.ctx.Widened,
			MethodArgs: map[metadata.MethodIndex][]metadata.TypeIndex{req.method: req.args},
		}
		inst := model.MethodInstance{Method: req.method, Name: m.Name}
		for _, a := range req.args {
			n, err := s.r.Resolve(s.acc, a, s.ctx, 0, names.UsageGenericArg)
			if err != nil {
				return err
			}
			inst.Args = append(inst.Args, n)
		}
		ret, err := s.r.Resolve(s.acc, m.Return, ctx, 0, names.UsageReturn)
		if err != nil {
			return err
		}
		inst.Return = ret
		params, err := b.params(s, m.Params, ctx)
		if err != nil {
			return err
		}
		inst.Params = params
		s.m.MethodInstances = append(s.m.MethodInstances, inst)
	}
	return nil
}

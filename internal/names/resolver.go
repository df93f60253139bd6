package names

import (
	"fmt"
	"slices"

	"nativebind/internal/deps"
	"nativebind/internal/diag"
	"nativebind/internal/metadata"
	"nativebind/internal/types"
)

const maxResolveDepth = 128

// Self describes the type under construction.
type Self struct {
	ID   types.KeyID
	Unit types.KeyID
	Name Name
	// Aliases are other keys that denote the same type, such as a
	// template instantiated with its own parameters.
	Aliases []types.KeyID
	// Template holds the literal parameter names of an unspecialized
	// generic definition.
	Template []string
}

// GenericContext maps generic parameters in scope to arguments.
type GenericContext struct {
	TypeArgs []metadata.TypeIndex
	// Widened arguments take precedence over TypeArgs when present.
	Widened    []Name
	MethodArgs map[metadata.MethodIndex][]metadata.TypeIndex

	literal bool
}

// literalVars returns a context where remaining parameters resolve to their
// declared names. Used when substituting arguments so substitution never
// loops.
func (c *GenericContext) literalVars() *GenericContext {
	return &GenericContext{literal: true}
}

// Resolver turns raw references into structured names for one type,
// recording requirements into the caller's tracker.
type Resolver struct {
	env     *Env
	self    Self
	rep     diag.Reporter
	subject diag.Subject
}

// NewResolver creates a resolver for self. rep may be nil.
func NewResolver(env *Env, self Self, rep diag.Reporter, subject diag.Subject) *Resolver {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	return &Resolver{env: env, self: self, rep: rep, subject: subject}
}

// Env returns the shared environment.
func (r *Resolver) Env() *Env { return r.env }

// Self returns the type under construction.
func (r *Resolver) Self() Self { return r.self }

// SetMember scopes subsequent diagnostics to a member.
func (r *Resolver) SetMember(member string) { r.subject.Member = member }

func (r *Resolver) isSelf(id types.KeyID) bool {
	return id != types.NoKeyID && (id == r.self.ID || slices.Contains(r.self.Aliases, id))
}

// Resolve names the type referenced by ref. depth is the full-definition
// budget: 0 only names the referent.
func (r *Resolver) Resolve(acc *deps.Tracker, ref metadata.TypeIndex, ctx *GenericContext, depth int, usage Usage) (Name, error) {
	return r.resolve(acc, ref, ctx, depth, usage, 0)
}

func (r *Resolver) resolve(acc *deps.Tracker, i metadata.TypeIndex, ctx *GenericContext, depth int, usage Usage, level int) (Name, error) {
	if level > maxResolveDepth {
		return Name{}, fmt.Errorf("%w (type #%d)", ErrTooDeep, i)
	}
	ref, ok := r.env.Snap.Type(i)
	if !ok {
		return Name{}, fmt.Errorf("%w: type #%d", metadata.ErrMalformed, i)
	}
	if depth < 0 {
		depth = 0
	}

	var (
		n   Name
		err error
	)
	switch ref.Tag {
	case metadata.TagVoid, metadata.TagBoolean, metadata.TagChar,
		metadata.TagI1, metadata.TagU1, metadata.TagI2, metadata.TagU2,
		metadata.TagI4, metadata.TagU4, metadata.TagI8, metadata.TagU8,
		metadata.TagR4, metadata.TagR8, metadata.TagI, metadata.TagU, metadata.TagString:
		n = builtin(acc, ref.Tag)
	case metadata.TagClass, metadata.TagValueType, metadata.TagObject, metadata.TagTypedByRef:
		n, err = r.definitionRef(acc, ref, depth, usage)
	case metadata.TagSzArray:
		var elem Name
		elem, err = r.resolve(acc, ref.Elem, ctx, depth, UsageGenericArg, level+1)
		acc.NeedSupport(deps.SupportArray)
		n = ArrayOf(elem)
	case metadata.TagArray:
		diag.ReportWarning(r.rep, diag.NameMultiDimArray, r.subject,
			"multi-dimensional array is not supported; using the object handle").Emit()
		acc.NeedSupport(deps.SupportObject)
		n = RootObject()
	case metadata.TagPtr:
		var elem Name
		elem, err = r.resolve(acc, ref.Elem, ctx, 0, UsageGenericArg, level+1)
		acc.NeedSupport(deps.SupportPtr)
		n = PtrOf(elem)
	case metadata.TagByRef:
		var elem Name
		elem, err = r.resolve(acc, ref.Elem, ctx, depth, usage, level+1)
		acc.NeedSupport(deps.SupportByRef)
		n = ByRefOf(elem, false)
	case metadata.TagFnPtr:
		acc.NeedSupport(deps.SupportPtr)
		n = PtrOf(builtin(acc, metadata.TagVoid))
	case metadata.TagVar:
		n, err = r.typeVar(acc, ref, ctx, depth, usage, level)
	case metadata.TagMVar:
		n, err = r.methodVar(acc, ref, ctx, depth, usage, level)
	case metadata.TagGenericInst:
		n, err = r.instance(acc, i, ref, ctx, depth, usage, level)
	default:
		diag.ReportWarning(r.rep, diag.NameUnknownEncoding, r.subject,
			fmt.Sprintf("unknown type encoding %s", ref.Tag)).Emit()
		n = Name{Name: UnknownTypeName}
	}
	if err != nil {
		return Name{}, err
	}
	if ref.ByRef && ref.Tag != metadata.TagByRef {
		acc.NeedSupport(deps.SupportByRef)
		n = ByRefOf(n, ref.Attrs&metadata.ParamAttrIn != 0)
	}
	return n, nil
}

func builtin(acc *deps.Tracker, tag metadata.Tag) Name {
	switch tag {
	case metadata.TagVoid:
		return Name{Name: "void"}
	case metadata.TagBoolean:
		acc.NeedSupport(deps.SupportInt)
		return Name{Name: "bool"}
	case metadata.TagChar:
		acc.NeedSupport(deps.SupportInt)
		return Name{Name: "char16_t"}
	case metadata.TagR4:
		acc.NeedSupport(deps.SupportFloat)
		return Name{Name: "float_t"}
	case metadata.TagR8:
		acc.NeedSupport(deps.SupportFloat)
		return Name{Name: "double_t"}
	case metadata.TagString:
		acc.NeedSupport(deps.SupportString)
		return Name{Name: "StringW"}
	}
	acc.NeedSupport(deps.SupportInt)
	return Name{Name: IntegerName(tag)}
}

// IntegerName returns the fixed-width name of an integer tag.
func IntegerName(tag metadata.Tag) string {
	switch tag {
	case metadata.TagI1:
		return "int8_t"
	case metadata.TagU1:
		return "uint8_t"
	case metadata.TagI2:
		return "int16_t"
	case metadata.TagU2:
		return "uint16_t"
	case metadata.TagI4:
		return "int32_t"
	case metadata.TagU4:
		return "uint32_t"
	case metadata.TagI8:
		return "int64_t"
	case metadata.TagU8:
		return "uint64_t"
	case metadata.TagI:
		return "intptr_t"
	case metadata.TagU:
		return "uintptr_t"
	}
	return UnknownTypeName
}

func (r *Resolver) definitionRef(acc *deps.Tracker, ref *metadata.TypeRef, depth int, usage Usage) (Name, error) {
	if ref.Def == metadata.NoTypeDef {
		if ref.Tag == metadata.TagTypedByRef {
			return Name{Name: "TypedReference"}, nil
		}
		acc.NeedSupport(deps.SupportObject)
		return RootObject(), nil
	}
	return r.definition(acc, ref.Def, depth, usage)
}

func (r *Resolver) definition(acc *deps.Tracker, def metadata.TypeDefIndex, depth int, usage Usage) (Name, error) {
	key := types.Key{Def: def}
	id := r.env.Keys.Intern(key)
	if r.isSelf(id) {
		return r.self.Name.Clone(), nil
	}
	if r.env.Denied(def) {
		return r.opaque(acc, def, usage), nil
	}
	d, _ := r.env.Snap.Def(def)
	r.require(acc, id, key, depth, usage, d.ValueType)
	return r.env.DefName(def), nil
}

// require records how self depends on id.
func (r *Resolver) require(acc *deps.Tracker, id types.KeyID, key types.Key, depth int, usage Usage, valueType bool) {
	if depth > 0 {
		acc.Depend(id)
	}
	unit := r.env.Unit(key)
	if unit == r.self.Unit {
		return
	}
	if depth > 0 {
		acc.RequireFull(id)
		acc.RequireImpl(id)
		return
	}
	acc.RequireForward(id, unit)
	if valueType && usage.signature() {
		acc.RequireImpl(id)
	}
}

func (r *Resolver) opaque(acc *deps.Tracker, def metadata.TypeDefIndex, usage Usage) Name {
	diag.ReportInfo(r.rep, diag.BindDeniedType, r.subject,
		fmt.Sprintf("%s is excluded; using an opaque handle", r.env.Snap.FullName(def))).Emit()
	if usage.Widening() {
		acc.NeedSupport(deps.SupportObject)
		return RootObject()
	}
	d, _ := r.env.Snap.Def(def)
	switch {
	case d.Enum:
		return EnumHandle()
	case d.ValueType:
		return ValueHandle()
	case d.IsInterface():
		return InterfaceHandle()
	}
	acc.NeedSupport(deps.SupportObject)
	return RootObject()
}

func (r *Resolver) param(ref *metadata.TypeRef) (*metadata.GenericParam, error) {
	gp, ok := r.env.Snap.Param(ref.Param)
	if !ok {
		return nil, fmt.Errorf("%w: generic param #%d", metadata.ErrMalformed, ref.Param)
	}
	return gp, nil
}

// substitute resolves a concrete argument standing in for a parameter.
func (r *Resolver) substitute(acc *deps.Tracker, arg metadata.TypeIndex, ctx *GenericContext, depth int, usage Usage, level int) (Name, error) {
	aref, ok := r.env.Snap.Type(arg)
	if !ok {
		return Name{}, fmt.Errorf("%w: type #%d", metadata.ErrMalformed, arg)
	}
	if aref.Tag == metadata.TagVar || aref.Tag == metadata.TagMVar {
		gp, err := r.param(aref)
		if err != nil {
			return Name{}, err
		}
		return Literal(gp.Name), nil
	}
	return r.resolve(acc, arg, ctx, depth, usage, level+1)
}

func (r *Resolver) typeVar(acc *deps.Tracker, ref *metadata.TypeRef, ctx *GenericContext, depth int, usage Usage, level int) (Name, error) {
	gp, err := r.param(ref)
	if err != nil {
		return Name{}, err
	}
	num := int(gp.Num)
	if ctx != nil && !ctx.literal {
		if num < len(ctx.Widened) {
			return ctx.Widened[num].Clone(), nil
		}
		if num < len(ctx.TypeArgs) {
			return r.substitute(acc, ctx.TypeArgs[num], ctx.literalVars(), depth, usage, level)
		}
	}
	if ctx != nil && ctx.literal || len(r.self.Template) > 0 {
		return Literal(gp.Name), nil
	}
	return Name{}, &UnresolvedGenericError{Param: gp.Name, Owner: r.subject.Type}
}

func (r *Resolver) methodVar(acc *deps.Tracker, ref *metadata.TypeRef, ctx *GenericContext, depth int, usage Usage, level int) (Name, error) {
	gp, err := r.param(ref)
	if err != nil {
		return Name{}, err
	}
	if ctx != nil && !ctx.literal && len(ctx.MethodArgs) > 0 {
		if c, ok := r.env.Snap.Container(gp.Owner); ok && c.IsMethod {
			args := ctx.MethodArgs[metadata.MethodIndex(c.Owner)]
			if int(gp.Num) < len(args) {
				inner := &GenericContext{TypeArgs: ctx.TypeArgs, Widened: ctx.Widened}
				return r.substitute(acc, args[gp.Num], inner, depth, usage, level)
			}
		}
	}
	return Literal(gp.Name), nil
}

func (r *Resolver) instance(acc *deps.Tracker, i metadata.TypeIndex, ref *metadata.TypeRef, ctx *GenericContext, depth int, usage Usage, level int) (Name, error) {
	id, key, _, err := r.env.KeyID(i)
	if err != nil {
		return Name{}, err
	}
	gc, _ := r.env.Snap.Class(ref.Class)
	inst, _ := r.env.Snap.Inst(gc.Class)
	if ctx != nil && !ctx.literal && len(ctx.TypeArgs) > 0 {
		// Key the concrete instantiation, not the one spelled with our
		// own parameters.
		k, err := types.InstanceKeyIn(r.env.Snap, key.Def, inst.Types, &types.Subst{Args: ctx.TypeArgs})
		if err != nil {
			return Name{}, err
		}
		key, id = k, r.env.Keys.Intern(k)
	}
	if r.isSelf(id) {
		return r.self.Name.Clone(), nil
	}
	if r.env.Denied(key.Def) {
		return r.opaque(acc, key.Def, usage), nil
	}

	next := 0
	if depth > 0 {
		next = depth - 1
	}
	args := make([]Name, len(inst.Types))
	for j, a := range inst.Types {
		aref, ok := r.env.Snap.Type(a)
		if !ok {
			return Name{}, fmt.Errorf("%w: type #%d", metadata.ErrMalformed, a)
		}
		argDepth := 0
		if aref.ValueType {
			argDepth = next
		}
		args[j], err = r.resolve(acc, a, ctx, argDepth, UsageGenericArg, level+1)
		if err != nil {
			return Name{}, err
		}
	}

	base, err := r.definition(acc, key.Def, depth, usage)
	if err != nil {
		return Name{}, err
	}
	r.require(acc, id, key, depth, usage, ref.ValueType)
	base.Args = args
	return base, nil
}

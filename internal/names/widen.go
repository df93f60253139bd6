package names

import (
	"fmt"
	"strings"

	"nativebind/internal/deps"
	"nativebind/internal/metadata"
	"nativebind/internal/types"
)

// ConstraintKind restricts what a widened placeholder may stand for.
type ConstraintKind uint8

const (
	ConstraintAny ConstraintKind = iota
	// ConstraintObject admits any managed-object handle.
	ConstraintObject
	// ConstraintIntegerBacked admits the backing integer or an enum over it.
	ConstraintIntegerBacked
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintObject:
		return "object"
	case ConstraintIntegerBacked:
		return "integer"
	}
	return "any"
}

// Constraint is the requirement placed on one template parameter.
type Constraint struct {
	Kind    ConstraintKind
	Backing Name // integer type for ConstraintIntegerBacked
}

func (c Constraint) String() string {
	if c.Kind == ConstraintIntegerBacked {
		return "integer(" + c.Backing.String() + ")"
	}
	return c.Kind.String()
}

// TemplateParam is one parameter of an emitted template.
type TemplateParam struct {
	Name       string
	Constraint Constraint
}

// WidenResult is the representation-shared form of an instantiation.
type WidenResult struct {
	Args     []Name
	Template []TemplateParam
	// Identity is equal for instantiations that share one emitted body.
	Identity string
}

// Widen replaces the arguments of def<args> with placeholder parameters
// wherever representation allows sharing. Reference arguments collapse into
// one object placeholder each; integer and enum arguments collapse onto
// their backing integer. Other value arguments stay concrete.
func (r *Resolver) Widen(acc *deps.Tracker, def metadata.TypeDefIndex, args []metadata.TypeIndex) (WidenResult, error) {
	w := widener{r: r, acc: acc}
	names, tokens, err := w.args(def, args, 0)
	if err != nil {
		return WidenResult{}, err
	}
	return WidenResult{
		Args:     names,
		Template: w.template,
		Identity: identity(def, tokens),
	}, nil
}

func identity(def metadata.TypeDefIndex, tokens []string) string {
	return types.Key{Def: def}.String() + "<" + strings.Join(tokens, ",") + ">"
}

type widener struct {
	r        *Resolver
	acc      *deps.Tracker
	template []TemplateParam
}

func (w *widener) placeholder(param string, c Constraint) Name {
	name := fmt.Sprintf("%s_gen_%d", param, len(w.template))
	w.template = append(w.template, TemplateParam{Name: name, Constraint: c})
	return Literal(name)
}

func (w *widener) args(def metadata.TypeDefIndex, args []metadata.TypeIndex, level int) ([]Name, []string, error) {
	if level > maxResolveDepth {
		return nil, nil, fmt.Errorf("%w (widening %s)", ErrTooDeep, w.r.env.Snap.FullName(def))
	}
	params := []string(nil)
	if d, ok := w.r.env.Snap.Def(def); ok {
		params = w.r.env.Snap.ContainerParams(d.Generic)
	}
	names := make([]Name, len(args))
	tokens := make([]string, len(args))
	for j, a := range args {
		param := fmt.Sprintf("T%d", j)
		if j < len(params) {
			param = params[j]
		}
		n, tok, err := w.arg(param, a, level)
		if err != nil {
			return nil, nil, err
		}
		names[j], tokens[j] = n, tok
	}
	return names, tokens, nil
}

func (w *widener) arg(param string, a metadata.TypeIndex, level int) (Name, string, error) {
	snap := w.r.env.Snap
	ref, ok := snap.Type(a)
	if !ok {
		return Name{}, "", fmt.Errorf("%w: type #%d", metadata.ErrMalformed, a)
	}
	switch ref.Tag {
	case metadata.TagVar, metadata.TagMVar:
		gp, err := w.r.param(ref)
		if err != nil {
			return Name{}, "", err
		}
		w.template = append(w.template, TemplateParam{Name: gp.Name})
		return Literal(gp.Name), "?" + gp.Name, nil
	case metadata.TagPtr, metadata.TagFnPtr:
		return w.concrete(a)
	}
	if ref.Tag.IsInteger() || ref.Tag == metadata.TagI || ref.Tag == metadata.TagU {
		backing := IntegerName(ref.Tag)
		return w.placeholder(param, Constraint{Kind: ConstraintIntegerBacked, Backing: Literal(backing)}), "int:" + backing, nil
	}
	if !ref.ValueType {
		return w.placeholder(param, Constraint{Kind: ConstraintObject}), "ref", nil
	}
	if ref.Tag == metadata.TagGenericInst {
		return w.nested(a, ref, level)
	}
	if ref.Def != metadata.NoTypeDef {
		if d, ok := snap.Def(ref.Def); ok && d.Enum && !w.r.env.Denied(ref.Def) {
			if et, ok := snap.Type(d.Element); ok && et.Tag.IsInteger() {
				backing := IntegerName(et.Tag)
				return w.placeholder(param, Constraint{Kind: ConstraintIntegerBacked, Backing: Literal(backing)}), "int:" + backing, nil
			}
		}
	}
	return w.concrete(a)
}

// concrete keeps a value argument as is; its size must be known.
func (w *widener) concrete(a metadata.TypeIndex) (Name, string, error) {
	n, err := w.r.Resolve(w.acc, a, nil, 1, UsageGenericArg)
	if err != nil {
		return Name{}, "", err
	}
	tok, err := types.ArgsKey(w.r.env.Snap, []metadata.TypeIndex{a})
	if err != nil {
		return Name{}, "", err
	}
	return n, tok, nil
}

// nested widens the arguments of a value-typed instantiation in place.
func (w *widener) nested(a metadata.TypeIndex, ref *metadata.TypeRef, level int) (Name, string, error) {
	snap := w.r.env.Snap
	gc, ok := snap.Class(ref.Class)
	if !ok {
		return Name{}, "", fmt.Errorf("%w: generic class #%d", metadata.ErrMalformed, ref.Class)
	}
	def, ok := snap.DefOf(gc.Type)
	if !ok {
		return Name{}, "", fmt.Errorf("%w: generic class #%d has no definition", metadata.ErrMalformed, ref.Class)
	}
	if w.r.env.Denied(def) {
		return w.concrete(a)
	}
	inst, ok := snap.Inst(gc.Class)
	if !ok {
		return Name{}, "", fmt.Errorf("%w: generic class #%d has no arguments", metadata.ErrMalformed, ref.Class)
	}
	args, tokens, err := w.args(def, inst.Types, level+1)
	if err != nil {
		return Name{}, "", err
	}
	base, err := w.r.definition(w.acc, def, 1, UsageGenericArg)
	if err != nil {
		return Name{}, "", err
	}
	base.Args = args
	return base, identity(def, tokens), nil
}

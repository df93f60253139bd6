// Package builder turns metadata definitions and instantiations into
// structural type models.
package builder

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"nativebind/internal/deps"
	"nativebind/internal/diag"
	"nativebind/internal/layout"
	"nativebind/internal/metadata"
	"nativebind/internal/model"
	"nativebind/internal/names"
	"nativebind/internal/types"
)

// ErrExcluded reports a type that is deliberately not generated.
var ErrExcluded = errors.New("type excluded from generation")

// embedDepth is the include budget of by-value positions: the referent
// needs a full definition, and so do value-typed arguments of a generic
// referent.
const embedDepth = 2

const rootObjectName = "System.Object"

type methodRequest struct {
	method metadata.MethodIndex
	args   []metadata.TypeIndex
	key    string
}

// Builder constructs type models. Register and AddMethodInstantiation are
// the setup phase; Build may then run concurrently for distinct keys.
type Builder struct {
	env       *names.Env
	sizer     *layout.Sizer
	engine    *layout.Engine
	instances *types.InstanceCache

	mu       sync.RWMutex
	args     map[types.KeyID][]metadata.TypeIndex
	requests map[types.KeyID][]methodRequest
}

// New creates a builder. instances may be shared with other builders.
func New(env *names.Env, sizer *layout.Sizer, instances *types.InstanceCache) *Builder {
	if instances == nil {
		instances = types.NewInstanceCache()
	}
	return &Builder{
		env:       env,
		sizer:     sizer,
		engine:    layout.New(sizer),
		instances: instances,
		args:      make(map[types.KeyID][]metadata.TypeIndex),
		requests:  make(map[types.KeyID][]methodRequest),
	}
}

// Env returns the resolution environment.
func (b *Builder) Env() *names.Env { return b.env }

// Sizer returns the shared sizer.
func (b *Builder) Sizer() *layout.Sizer { return b.sizer }

// Register interns a generic class and remembers its arguments. Duplicate
// classes with equal arguments share one key.
func (b *Builder) Register(c metadata.GenericClassIndex) (types.KeyID, error) {
	k, err := types.ClassKey(b.env.Snap, c)
	if err != nil {
		return types.NoKeyID, err
	}
	gc, _ := b.env.Snap.Class(c)
	inst, _ := b.env.Snap.Inst(gc.Class)
	id := b.env.Keys.Intern(k)
	b.mu.Lock()
	if _, ok := b.args[id]; !ok {
		b.args[id] = inst.Types
	}
	b.mu.Unlock()
	return id, nil
}

// Args returns the concrete arguments registered for an instance key.
func (b *Builder) Args(id types.KeyID) ([]metadata.TypeIndex, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.args[id]
	return a, ok
}

// AddMethodInstantiation records a generic method instantiation request
// against its owning type. It adds no member; Build resolves the request
// into a MethodInstance.
func (b *Builder) AddMethodInstantiation(spec metadata.MethodSpec) error {
	snap := b.env.Snap
	m, ok := snap.Method(spec.Method)
	if !ok {
		return fmt.Errorf("%w: method spec names method #%d", metadata.ErrMalformed, spec.Method)
	}
	owner := types.Key{Def: m.Declaring}
	if spec.ClassInst != metadata.NoInst {
		ci, ok := snap.Inst(spec.ClassInst)
		if !ok {
			return fmt.Errorf("%w: method spec class inst #%d", metadata.ErrMalformed, spec.ClassInst)
		}
		k, err := types.InstanceKeyIn(snap, m.Declaring, ci.Types, nil)
		if err != nil {
			return err
		}
		owner = k
	}
	var args []metadata.TypeIndex
	if spec.MethodInst != metadata.NoInst {
		mi, ok := snap.Inst(spec.MethodInst)
		if !ok {
			return fmt.Errorf("%w: method spec method inst #%d", metadata.ErrMalformed, spec.MethodInst)
		}
		args = mi.Types
	}
	key, err := types.ArgsKey(snap, args)
	if err != nil {
		return err
	}
	id := b.env.Keys.Intern(owner)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.requests[id] {
		if r.method == spec.Method && r.key == key {
			return nil
		}
	}
	b.requests[id] = append(b.requests[id], methodRequest{method: spec.Method, args: args, key: key})
	return nil
}

func (b *Builder) methodRequests(id types.KeyID) []methodRequest {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := slices.Clone(b.requests[id])
	slices.SortFunc(out, func(x, y methodRequest) int {
		if x.method != y.method {
			return int(x.method) - int(y.method)
		}
		return strings.Compare(x.key, y.key)
	})
	return out
}

// Claim computes the shared identity of an instance key and claims it. The
// driver calls it in key order before the parallel pass so the owner of
// every identity is deterministic.
func (b *Builder) Claim(id types.KeyID) (string, types.KeyID, error) {
	key, ok := b.env.Keys.Lookup(id)
	if !ok || !key.IsInstance() {
		return "", id, nil
	}
	args, ok := b.Args(id)
	if !ok {
		return "", id, nil
	}
	r := names.NewResolver(b.env, names.Self{ID: id}, nil, diag.Subject{})
	w, err := r.Widen(deps.New(id), key.Def, args)
	if err != nil {
		return "", id, err
	}
	owner, _ := b.instances.Claim(w.Identity, id)
	return w.Identity, owner, nil
}

// state is the per-Build scratch space.
type state struct {
	id    types.KeyID
	key   types.Key
	def   *metadata.TypeDef
	m     *model.TypeModel
	acc   *deps.Tracker
	r     *names.Resolver
	rep   diag.Reporter
	ctx   *names.GenericContext
	sub   *types.Subst
	props map[string]struct{}
}

func (s *state) subject(member string) diag.Subject {
	return diag.Subject{Type: s.m.Name.String(), Member: member}
}

// Build constructs the model of one key together with its requirements.
// ErrExcluded is returned for types that are not generated.
func (b *Builder) Build(id types.KeyID, rep diag.Reporter) (*model.TypeModel, *deps.Tracker, error) {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	key, ok := b.env.Keys.Lookup(id)
	if !ok {
		return nil, nil, fmt.Errorf("unknown key id %d", id)
	}
	snap := b.env.Snap
	def, ok := snap.Def(key.Def)
	if !ok {
		return nil, nil, fmt.Errorf("%w: typedef #%d", metadata.ErrMalformed, key.Def)
	}
	full := b.env.FullName(key)

	if reason := b.excluded(key.Def, def); reason != "" {
		diag.ReportInfo(rep, diag.BindTypeExcluded, diag.Subject{Type: full}, reason).Emit()
		return nil, nil, fmt.Errorf("%w: %s: %s", ErrExcluded, full, reason)
	}

	s := &state{
		id:    id,
		key:   key,
		def:   def,
		acc:   deps.New(id),
		rep:   rep,
		props: make(map[string]struct{}, len(def.Properties)),
	}
	s.m = &model.TypeModel{
		Key:      key,
		KeyID:    id,
		Def:      key.Def,
		Name:     b.env.DefName(key.Def),
		Kind:     kindOf(def),
		Explicit: def.IsExplicit(),
	}
	if err := b.self(s); err != nil {
		return nil, nil, err
	}

	steps := []func(*state) error{
		b.parent,
		b.interfaces,
		b.nested,
		b.properties,
		b.fields,
		b.methods,
		b.methodInstances,
		b.size,
	}
	for _, step := range steps {
		if err := step(s); err != nil {
			return nil, nil, s.layoutFailed(err)
		}
	}
	s.r.SetMember("")
	if err := b.engine.Apply(s.m, rep); err != nil {
		return nil, nil, s.layoutFailed(err)
	}
	return s.m, s.acc, nil
}

// layoutFailed reports layout errors against the type and passes err on.
func (s *state) layoutFailed(err error) error {
	var le *layout.LayoutError
	if !errors.As(err, &le) {
		return err
	}
	code := diag.LayoutMissingSize
	if le.Kind == layout.ErrRecursiveValueType {
		code = diag.LayoutRecursiveValue
	}
	diag.ReportError(s.rep, code, s.subject(""), le.Error()).Emit()
	return err
}

func kindOf(d *metadata.TypeDef) model.Kind {
	switch {
	case d.Enum:
		return model.KindEnum
	case d.ValueType:
		return model.KindValue
	case d.IsInterface():
		return model.KindInterface
	}
	return model.KindReference
}

func (b *Builder) excluded(idx metadata.TypeDefIndex, d *metadata.TypeDef) string {
	if b.env.Denied(idx) {
		return "deny-listed"
	}
	if !d.IsInterface() && d.Parent == metadata.NoType && b.env.Snap.FullName(idx) != rootObjectName {
		return "no parent and not the root object"
	}
	return ""
}

// self sets up the identity, generic context and resolver of s.
func (b *Builder) self(s *state) error {
	snap := b.env.Snap
	self := names.Self{ID: s.id, Unit: b.env.Unit(s.key)}
	params := snap.ContainerParams(s.def.Generic)

	if !s.key.IsInstance() {
		if len(params) > 0 {
			s.m.Template = model.TemplateOf(params)
			self.Template = params
			tokens := make([]string, len(params))
			lits := make([]names.Name, len(params))
			for i, p := range params {
				tokens[i] = "!" + strconv.Itoa(i)
				lits[i] = names.Literal(p)
			}
			s.m.Name.Args = lits
			self.Aliases = []types.KeyID{b.env.Keys.Intern(types.Key{Def: s.key.Def, Args: strings.Join(tokens, "#")})}
		}
		self.Name = s.m.Name
		s.r = names.NewResolver(b.env, self, s.rep, diag.Subject{Type: s.m.Name.String()})
		s.ctx = &names.GenericContext{}
		return nil
	}

	args, ok := b.Args(s.id)
	if !ok {
		return fmt.Errorf("instance %s was never registered", b.env.FullName(s.key))
	}
	s.m.InstanceOf = b.env.Keys.Intern(s.key.Definition())
	s.sub = &types.Subst{Args: args}
	s.ctx = &names.GenericContext{TypeArgs: args}

	// Arguments are named before self is known; they never refer back to it.
	pre := names.NewResolver(b.env, names.Self{ID: s.id, Unit: self.Unit}, s.rep, diag.Subject{Type: b.env.FullName(s.key)})
	argNames := make([]names.Name, len(args))
	for i, a := range args {
		n, err := pre.Resolve(s.acc, a, nil, 0, names.UsageGenericArg)
		if err != nil {
			return err
		}
		argNames[i] = n
	}
	s.m.Name.Args = argNames
	self.Name = s.m.Name
	s.r = names.NewResolver(b.env, self, s.rep, diag.Subject{Type: s.m.Name.String()})

	w, err := s.r.Widen(s.acc, s.key.Def, args)
	if err != nil {
		return err
	}
	s.m.Identity = w.Identity
	owner, ok := b.instances.Owner(w.Identity)
	if !ok {
		owner, _ = b.instances.Claim(w.Identity, s.id)
	}
	if owner != s.id {
		s.m.SharedWith = owner
		diag.ReportInfo(s.rep, diag.BindSharedInstance, s.subject(""),
			fmt.Sprintf("shares its representation with %s", w.Identity)).Emit()
		return nil
	}
	if len(w.Template) > 0 {
		s.m.Template = &model.GenericTemplate{Params: w.Template}
		s.ctx.Widened = w.Args
	}
	return nil
}

func (b *Builder) parent(s *state) error {
	if s.def.ValueType || s.def.Parent == metadata.NoType {
		return nil
	}
	s.r.SetMember("")
	n, err := s.r.Resolve(s.acc, s.def.Parent, s.ctx, embedDepth, names.UsageBaseType)
	if err != nil {
		return err
	}
	s.m.Parent = &n
	return nil
}

func (b *Builder) interfaces(s *state) error {
	for _, it := range s.def.Interfaces {
		n, err := s.r.Resolve(s.acc, it, s.ctx, 0, names.UsageInterface)
		if err != nil {
			return err
		}
		s.m.Interfaces = append(s.m.Interfaces, n)
	}
	return nil
}

func (b *Builder) nested(s *state) error {
	if s.key.IsInstance() {
		return nil
	}
	for _, n := range s.def.Nested {
		s.m.Nested = append(s.m.Nested, b.env.Keys.Intern(types.Key{Def: n}))
	}
	return nil
}

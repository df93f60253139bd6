package deps

import (
	"slices"

	"nativebind/internal/types"
)

// Support flags name built-in facilities a unit needs.
type Support uint16

const (
	SupportInt Support = 1 << iota
	SupportFloat
	SupportString
	SupportArray
	SupportPtr
	SupportByRef
	SupportObject
)

var supportNames = []struct {
	flag Support
	name string
}{
	{SupportInt, "int"},
	{SupportFloat, "float"},
	{SupportString, "string"},
	{SupportArray, "array"},
	{SupportPtr, "ptr"},
	{SupportByRef, "byref"},
	{SupportObject, "object"},
}

// Names lists the set flags in declaration order.
func (s Support) Names() []string {
	var out []string
	for _, sn := range supportNames {
		if s&sn.flag != 0 {
			out = append(out, sn.name)
		}
	}
	return out
}

// Tracker accumulates the emission requirements of one type. It is owned by
// exactly one builder and is never shared between goroutines.
type Tracker struct {
	self types.KeyID

	forward map[types.KeyID]types.KeyID // referent -> unit holding its definition
	full    map[types.KeyID]struct{}
	impl    map[types.KeyID]struct{}
	depends map[types.KeyID]struct{}
	support Support
}

// New creates a tracker for the type self.
func New(self types.KeyID) *Tracker {
	return &Tracker{
		self:    self,
		forward: make(map[types.KeyID]types.KeyID),
		full:    make(map[types.KeyID]struct{}),
		impl:    make(map[types.KeyID]struct{}),
		depends: make(map[types.KeyID]struct{}),
	}
}

// Self returns the owning type.
func (t *Tracker) Self() types.KeyID { return t.self }

func (t *Tracker) skip(id types.KeyID) bool {
	return t == nil || id == types.NoKeyID || id == t.self
}

// RequireFull records that id must be fully defined before self. It
// supersedes any forward reference recorded for id.
func (t *Tracker) RequireFull(id types.KeyID) {
	if t.skip(id) {
		return
	}
	delete(t.forward, id)
	t.full[id] = struct{}{}
}

// RequireForward records that naming id is enough; unit is where its full
// definition lives. It is a no-op once a full definition is required.
func (t *Tracker) RequireForward(id, unit types.KeyID) {
	if t.skip(id) {
		return
	}
	if _, ok := t.full[id]; ok {
		return
	}
	if _, ok := t.forward[id]; ok {
		return
	}
	t.forward[id] = unit
}

// RequireImpl records that out-of-line implementations need id defined.
func (t *Tracker) RequireImpl(id types.KeyID) {
	if t.skip(id) {
		return
	}
	t.impl[id] = struct{}{}
}

// Depend adds id to the set of types self depends on.
func (t *Tracker) Depend(id types.KeyID) {
	if t.skip(id) {
		return
	}
	t.depends[id] = struct{}{}
}

// NeedSupport raises support flags.
func (t *Tracker) NeedSupport(s Support) {
	if t == nil {
		return
	}
	t.support |= s
}

// Support returns the raised support flags.
func (t *Tracker) Support() Support { return t.support }

// HasFull reports whether id requires a full definition.
func (t *Tracker) HasFull(id types.KeyID) bool {
	_, ok := t.full[id]
	return ok
}

// HasForward reports whether id is only forward-referenced.
func (t *Tracker) HasForward(id types.KeyID) bool {
	_, ok := t.forward[id]
	return ok
}

// DependsOn reports whether id is in the dependency set.
func (t *Tracker) DependsOn(id types.KeyID) bool {
	_, ok := t.depends[id]
	return ok
}

// ForwardRef pairs a forward-referenced type with its defining unit.
type ForwardRef struct {
	Type types.KeyID
	Unit types.KeyID
}

// Forward returns forward references sorted by type.
func (t *Tracker) Forward() []ForwardRef {
	out := make([]ForwardRef, 0, len(t.forward))
	for id, unit := range t.forward {
		out = append(out, ForwardRef{Type: id, Unit: unit})
	}
	slices.SortFunc(out, func(a, b ForwardRef) int { return int(a.Type) - int(b.Type) })
	return out
}

// Full returns full-definition requirements, sorted.
func (t *Tracker) Full() []types.KeyID { return sortedSet(t.full) }

// Impl returns implementation-only requirements, sorted.
func (t *Tracker) Impl() []types.KeyID { return sortedSet(t.impl) }

// Depends returns the dependency set, sorted.
func (t *Tracker) Depends() []types.KeyID { return sortedSet(t.depends) }

func sortedSet(m map[types.KeyID]struct{}) []types.KeyID {
	out := make([]types.KeyID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Requirements is the immutable, serializable view of a tracker.
type Requirements struct {
	Forward []ForwardRef
	Full    []types.KeyID
	Impl    []types.KeyID
	Depends []types.KeyID
	Support []string
}

// Requirements snapshots the tracker.
func (t *Tracker) Requirements() Requirements {
	if t == nil {
		return Requirements{}
	}
	return Requirements{
		Forward: t.Forward(),
		Full:    t.Full(),
		Impl:    t.Impl(),
		Depends: t.Depends(),
		Support: t.support.Names(),
	}
}

package names

import (
	"fmt"

	"nativebind/internal/metadata"
	"nativebind/internal/types"
)

// Env is the read-only, shareable context of every resolver.
type Env struct {
	Snap *metadata.Snapshot
	Keys *types.Interner

	deny      map[metadata.TypeDefIndex]struct{}
	unmatched []string
}

// NewEnv binds a snapshot and interner; deny holds fully qualified names.
func NewEnv(snap *metadata.Snapshot, keys *types.Interner, deny []string) *Env {
	e := &Env{
		Snap: snap,
		Keys: keys,
		deny: make(map[metadata.TypeDefIndex]struct{}, len(deny)),
	}
	if len(deny) == 0 {
		return e
	}
	want := make(map[string]bool, len(deny))
	for _, d := range deny {
		want[d] = false
	}
	for i := range snap.TypeDefs {
		idx := metadata.TypeDefIndex(i) //nolint:gosec // bounded by len(TypeDefs)
		full := snap.FullName(idx)
		if _, ok := want[full]; ok {
			e.deny[idx] = struct{}{}
			want[full] = true
		}
	}
	for _, d := range deny {
		if !want[d] {
			e.unmatched = append(e.unmatched, d)
			want[d] = true
		}
	}
	return e
}

// Denied reports whether def is excluded from generation.
func (e *Env) Denied(def metadata.TypeDefIndex) bool {
	_, ok := e.deny[def]
	return ok
}

// UnmatchedDeny lists deny-list entries that name no definition.
func (e *Env) UnmatchedDeny() []string { return e.unmatched }

// DefName returns the structured name of a definition without arguments.
func (e *Env) DefName(def metadata.TypeDefIndex) Name {
	d, ok := e.Snap.Def(def)
	if !ok {
		return Name{Name: fmt.Sprintf("<typedef#%d>", def)}
	}
	root, outer := e.Snap.Root(def)
	ns := ""
	if rd, ok := e.Snap.Def(root); ok {
		ns = rd.Namespace
	}
	return Name{
		Namespace:      ns,
		DeclaringTypes: outer,
		Name:           d.Name,
		IsPointer:      !d.ValueType,
		Generic:        d.Generic != metadata.NoContainer,
	}
}

// Unit returns the emission unit of a key: its outermost declaring
// definition. Instantiations share the unit of their definition.
func (e *Env) Unit(k types.Key) types.KeyID {
	root, _ := e.Snap.Root(k.Def)
	return e.Keys.Intern(types.Key{Def: root})
}

// KeyID interns the key named by a type reference.
func (e *Env) KeyID(i metadata.TypeIndex) (types.KeyID, types.Key, bool, error) {
	k, ok, err := types.KeyOf(e.Snap, i)
	if err != nil || !ok {
		return types.NoKeyID, k, ok, err
	}
	return e.Keys.Intern(k), k, true, nil
}

// FullName renders a key the way diagnostics name types.
func (e *Env) FullName(k types.Key) string {
	full := e.Snap.FullName(k.Def)
	if k.Args == "" {
		return full
	}
	return full + "[" + k.Args + "]"
}

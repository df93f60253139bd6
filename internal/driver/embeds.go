package driver

import (
	"nativebind/internal/metadata"
	"nativebind/internal/types"
)

// embeds lists the keys of the run that id stores by value. Templates are
// layout-free and embed nothing.
func (p *pass) embeds(id types.KeyID) []types.KeyID {
	snap := p.env.Snap
	key, ok := p.env.Keys.Lookup(id)
	if !ok {
		return nil
	}
	def, ok := snap.Def(key.Def)
	if !ok {
		return nil
	}
	var sub *types.Subst
	if key.IsInstance() {
		args, _ := p.builder.Args(id)
		sub = &types.Subst{Args: args}
	} else if def.Generic != metadata.NoContainer {
		return nil
	}
	var out []types.KeyID
	for _, f := range def.Fields {
		ref, ok := snap.Type(f.Type)
		if !ok || ref.IsStatic() || ref.ByRef {
			continue
		}
		if k, ok := p.embedded(f.Type, sub, 0); ok {
			out = append(out, k)
		}
	}
	return out
}

// embedded returns the key of a by-value field type when it belongs to the
// run. Primitives never embed: their definitions carry a field of their own
// kind.
func (p *pass) embedded(i metadata.TypeIndex, sub *types.Subst, depth int) (types.KeyID, bool) {
	snap := p.env.Snap
	ref, ok := snap.Type(i)
	if !ok || depth > maxEmbedDepth {
		return types.NoKeyID, false
	}
	switch ref.Tag {
	case metadata.TagVar:
		gp, ok := snap.Param(ref.Param)
		if !ok || sub == nil || int(gp.Num) >= len(sub.Args) {
			return types.NoKeyID, false
		}
		return p.embedded(sub.Args[gp.Num], sub.Outer, depth+1)
	case metadata.TagValueType:
		if ref.Def == metadata.NoTypeDef {
			return types.NoKeyID, false
		}
		return p.env.Keys.Find(types.Key{Def: ref.Def})
	case metadata.TagGenericInst:
		if !ref.ValueType {
			return types.NoKeyID, false
		}
		gc, ok := snap.Class(ref.Class)
		if !ok {
			return types.NoKeyID, false
		}
		def, ok := snap.DefOf(gc.Type)
		inst, ok2 := snap.Inst(gc.Class)
		if !ok || !ok2 {
			return types.NoKeyID, false
		}
		k, err := types.InstanceKeyIn(snap, def, inst.Types, sub)
		if err != nil {
			return types.NoKeyID, false
		}
		return p.env.Keys.Find(k)
	}
	return types.NoKeyID, false
}

const maxEmbedDepth = 64

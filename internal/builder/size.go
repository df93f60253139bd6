package builder

import (
	"errors"

	"nativebind/internal/layout"
	"nativebind/internal/model"
)

// size attaches size information. Reported entries win; instantiations and
// enums fall back to the computed layout. Templates carry no size.
func (b *Builder) size(s *state) error {
	if s.m.IsTemplate() {
		return nil
	}
	entry, reported := b.sizer.Entry(s.key)

	// Value types are laid out even when reported, to catch self-embedding.
	var computed layout.Layout
	var lerr error
	if s.def.ValueType || !reported {
		computed, lerr = b.sizer.TypeLayout(s.key.Def, s.sub)
		var le *layout.LayoutError
		if errors.As(lerr, &le) && le.Kind == layout.ErrRecursiveValueType {
			return lerr
		}
	}

	header := b.sizer.Target.HeaderSize()
	info := &model.SizeInfo{}
	switch {
	case reported:
		info.InstanceSize = entry.InstanceSize
		if s.def.ValueType && info.InstanceSize >= header {
			info.InstanceSize -= header
		}
		info.NaturalAlignment = entry.NaturalAlignment
		if entry.HasPacking {
			p := entry.Packing
			info.Packing = &p
		}
	case s.def.IsInterface():
		return nil
	case s.key.IsInstance() || s.def.Enum:
		if lerr != nil {
			return lerr
		}
		info.InstanceSize = computed.Size
		info.NaturalAlignment = computed.Align
	default:
		return &layout.LayoutError{
			Kind:   layout.ErrMissingSizeInfo,
			Type:   s.m.Name.String(),
			Detail: "no size table entry",
		}
	}
	if !s.def.ValueType {
		info.CalculatedSize = b.sizer.BaseSize(s.def.Parent, s.sub)
	}
	s.m.Size = info
	return nil
}

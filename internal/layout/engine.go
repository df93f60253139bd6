package layout

import (
	"fmt"

	"nativebind/internal/diag"
	"nativebind/internal/model"
)

// Engine arranges the instance fields of finished models.
type Engine struct {
	Target Target
	Sizer  *Sizer
}

// New creates an engine over a shared sizer.
func New(sizer *Sizer) *Engine {
	return &Engine{Target: sizer.Target, Sizer: sizer}
}

// Apply replaces the instance fields of m with their final arrangement:
// an explicit union, collision unions, or the plain fields, followed by size
// padding, then static and constant fields, then the remaining members.
func (e *Engine) Apply(m *model.TypeModel, rep diag.Reporter) error {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	var instance, shared, rest []model.Member
	for _, mem := range m.Members {
		f, ok := mem.(*model.Field)
		switch {
		case !ok:
			rest = append(rest, mem)
		case f.Storage == model.StorageInstance:
			instance = append(instance, f)
		default:
			shared = append(shared, f)
		}
	}

	if m.Size == nil {
		if m.IsTemplate() || m.Kind == model.KindInterface {
			return nil
		}
		return &LayoutError{Kind: ErrMissingSizeInfo, Type: m.Name.String()}
	}

	infos := InfosOf(instance)
	for _, fi := range infos {
		m.Size.CalculatedSize = max(m.Size.CalculatedSize, fi.End())
	}

	subject := diag.Subject{Type: m.Name.String()}
	var laid []model.Member
	switch {
	case len(infos) == 0:
	case m.Explicit:
		natural := m.Size.NaturalAlignment
		if m.Size.Packing != nil && *m.Size.Packing != 0 {
			natural = *m.Size.Packing
		}
		laid = []model.Member{ExplicitUnion(infos, natural)}
	case HasCollision(infos):
		diag.ReportInfo(rep, diag.LayoutCollision, subject,
			fmt.Sprintf("%d overlapping instance fields were unionized", len(infos))).Emit()
		laid = Unionize(infos)
	default:
		for _, fi := range sortByOffset(infos) {
			laid = append(laid, fi.Field)
		}
	}

	// Fields without a placement keep their declaration order.
	for _, mem := range instance {
		if f := mem.(*model.Field); !f.HasOffset {
			laid = append(laid, f)
		}
	}

	if pad, ok := SizePadding(m.Size); ok {
		diag.ReportInfo(rep, diag.LayoutSizePadding, subject,
			fmt.Sprintf("padded 0x%x bytes to reach the reported size 0x%x", pad.PadBytes, m.Size.InstanceSize)).
			WithNote(fmt.Sprintf("calculated size 0x%x", m.Size.CalculatedSize)).Emit()
		laid = append(laid, pad)
	}

	members := make([]model.Member, 0, len(laid)+len(shared)+len(rest))
	members = append(members, laid...)
	members = append(members, shared...)
	members = append(members, rest...)
	m.Members = members
	return nil
}

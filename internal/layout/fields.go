package layout

import (
	"fmt"
	"math"
	"slices"

	"nativebind/internal/model"
)

// FieldInfo is an instance field with its resolved placement.
type FieldInfo struct {
	Field  *model.Field
	Offset uint32
	Size   uint32
}

// End is the first byte past the field.
func (f FieldInfo) End() uint32 { return f.Offset + f.Size }

// FieldInfoSet is one group of overlapping fields split into parallel
// branches. Fields within a branch are sequential.
type FieldInfoSet struct {
	Offset   uint32
	Branches [][]FieldInfo
	extent   uint32
}

func branchEnd(b []FieldInfo) uint32 {
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1].End()
}

// InfosOf collects the placed instance fields of a member list.
func InfosOf(members []model.Member) []FieldInfo {
	var out []FieldInfo
	for _, m := range members {
		f, ok := m.(*model.Field)
		if !ok || f.Storage != model.StorageInstance || !f.HasOffset {
			continue
		}
		out = append(out, FieldInfo{Field: f, Offset: f.Offset, Size: f.Size})
	}
	return out
}

func sortByOffset(fields []FieldInfo) []FieldInfo {
	out := slices.Clone(fields)
	slices.SortStableFunc(out, func(a, b FieldInfo) int {
		if a.Offset != b.Offset {
			if a.Offset < b.Offset {
				return -1
			}
			return 1
		}
		// Larger fields first so they anchor their group.
		if a.Size != b.Size {
			if a.Size > b.Size {
				return -1
			}
			return 1
		}
		return 0
	})
	return out
}

// HasCollision reports whether any field starts before the previous one
// ends.
func HasCollision(fields []FieldInfo) bool {
	next := uint32(0)
	for i, f := range sortByOffset(fields) {
		if i > 0 && f.Offset < next {
			return true
		}
		next = f.End()
	}
	return false
}

// Group splits fields into overlapping groups with sequential branches.
func Group(fields []FieldInfo) []FieldInfoSet {
	var (
		sets []FieldInfoSet
		cur  *FieldInfoSet
	)
	for _, f := range sortByOffset(fields) {
		if cur == nil || f.Offset > cur.extent {
			sets = append(sets, FieldInfoSet{Offset: f.Offset, extent: f.End()})
			cur = &sets[len(sets)-1]
			cur.Branches = [][]FieldInfo{{f}}
			continue
		}
		last := len(cur.Branches) - 1
		if f.Offset >= branchEnd(cur.Branches[last]) {
			cur.Branches[last] = append(cur.Branches[last], f)
		} else {
			cur.Branches = append(cur.Branches, []FieldInfo{f})
		}
		cur.extent = max(cur.extent, f.End())
	}
	return sets
}

// Unionize turns overlapping fields into unions of sequential branches.
// Groups with a single branch stay plain fields.
func Unionize(fields []FieldInfo) []model.Member {
	var out []model.Member
	for _, set := range Group(fields) {
		if len(set.Branches) == 1 {
			out = append(out, branchMembers(set.Branches[0], set.Offset)...)
			continue
		}
		u := &model.Union{Offset: set.Offset}
		for _, b := range set.Branches {
			members := branchMembers(b, set.Offset)
			if len(members) == 1 {
				u.Members = append(u.Members, members[0])
				continue
			}
			u.Members = append(u.Members, &model.Struct{Members: members})
		}
		out = append(out, u)
	}
	return out
}

// branchMembers lists a branch's fields, padding gaps so every field keeps
// its exact offset. The first field of a branch sits at the group offset
// unless the branch starts later.
func branchMembers(b []FieldInfo, base uint32) []model.Member {
	out := make([]model.Member, 0, len(b))
	pos := base
	for _, f := range b {
		if f.Offset > pos {
			out = append(out, model.PadField(fmt.Sprintf("_cordl_padding_%x", pos), pos, f.Offset-pos))
		}
		out = append(out, f.Field)
		pos = f.End()
	}
	return out
}

// ExplicitUnion overlays every field in a union of two structs each: one
// byte packed so the field lands on its exact offset, and one with natural
// packing so the field keeps its alignment.
func ExplicitUnion(fields []FieldInfo, natural uint8) *model.Union {
	sorted := sortByOffset(fields)
	u := &model.Union{}
	if len(sorted) > 0 {
		u.Offset = sorted[0].Offset
	}
	for _, f := range fields {
		packed := &model.Struct{Packing: 1}
		aligned := &model.Struct{Packing: natural}
		if f.Offset > 0 {
			packed.Members = append(packed.Members,
				model.PadField(fmt.Sprintf("%s_padding", f.Field.Name), 0, f.Offset))
			aligned.Members = append(aligned.Members,
				model.PadField(fmt.Sprintf("%s_padding_forAlignment", f.Field.Name), 0, f.Offset))
		}
		packed.Members = append(packed.Members, f.Field)
		twin := *f.Field
		twin.Name = f.Field.Name + "_forAlignment"
		aligned.Members = append(aligned.Members, &twin)
		u.Members = append(u.Members, packed, aligned)
	}
	return u
}

// closestPacking maps a packing or alignment to the granularity trailing
// padding is rounded to.
func closestPacking(n uint32) uint32 {
	switch n {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 3, 4:
		return 4
	}
	return 8
}

// SizePaddingName is the name of the trailing padding field.
const SizePaddingName = "_cordl_size_padding"

// SizePadding returns the trailing byte array that brings the calculated
// size up to the reported one, if any is needed.
func SizePadding(info *model.SizeInfo) (*model.Field, bool) {
	if info == nil || info.InstanceSize == 0 || info.InstanceSize == math.MaxUint32 {
		return nil, false
	}
	if info.CalculatedSize >= info.InstanceSize {
		return nil, false
	}
	if roundUp(info.CalculatedSize, uint32(info.NaturalAlignment)) == info.InstanceSize {
		return nil, false
	}
	remaining := info.InstanceSize - info.CalculatedSize
	rounding := uint32(info.NaturalAlignment)
	if info.Packing != nil {
		rounding = uint32(*info.Packing)
	}
	rounding = closestPacking(rounding)
	packed := remaining
	if rounding != 0 {
		packed = remaining &^ (rounding - 1)
	}
	if packed == 0 {
		return nil, false
	}
	return model.PadField(SizePaddingName, info.CalculatedSize, packed), true
}

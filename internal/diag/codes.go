package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Type-level outcomes
	BindInfo           Code = 1000
	BindTypeExcluded   Code = 1001
	BindDeniedType     Code = 1002
	BindTypeFailed     Code = 1003
	BindSharedInstance Code = 1004

	// Name resolution
	NameUnknownEncoding   Code = 2001
	NameUnresolvedGeneric Code = 2002
	NameMultiDimArray     Code = 2003

	// Layout
	LayoutOffsetBelowBase  Code = 3001
	LayoutCollision        Code = 3002
	LayoutMissingSize      Code = 3003
	LayoutRecursiveValue   Code = 3004
	LayoutSizePadding      Code = 3005
	LayoutDependencyFailed Code = 3006

	// Constants
	ConstUnknownTag  Code = 4001
	ConstUnsupported Code = 4002
	ConstMalformed   Code = 4003
)

var codeDescription = map[Code]string{
	UnknownCode:            "Unknown error",
	BindInfo:               "Generation information",
	BindTypeExcluded:       "Type excluded from generation",
	BindDeniedType:         "Reference to a deny-listed type",
	BindTypeFailed:         "Type generation failed",
	BindSharedInstance:     "Instantiation shares an emitted representation",
	NameUnknownEncoding:    "Unknown type encoding",
	NameUnresolvedGeneric:  "Unresolved generic argument",
	NameMultiDimArray:      "Multi-dimensional array replaced by an object handle",
	LayoutOffsetBelowBase:  "Field offset below the object header",
	LayoutCollision:        "Overlapping fields unionized",
	LayoutMissingSize:      "Missing size information",
	LayoutRecursiveValue:   "Recursive value type",
	LayoutSizePadding:      "Size padding appended",
	LayoutDependencyFailed: "Embedded value type failed",
	ConstUnknownTag:        "Unknown constant encoding",
	ConstUnsupported:       "Unsupported constant encoding",
	ConstMalformed:         "Malformed constant blob",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("BND%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("NAM%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("CST%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

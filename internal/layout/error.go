package layout

import (
	"fmt"
	"strings"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// ErrMissingSizeInfo indicates a type with no usable size data.
	ErrMissingSizeInfo LayoutErrorKind = iota + 1
	// ErrRecursiveValueType indicates a value type that embeds itself.
	ErrRecursiveValueType
)

func (k LayoutErrorKind) String() string {
	switch k {
	case ErrMissingSizeInfo:
		return "missing size info"
	case ErrRecursiveValueType:
		return "recursive value type"
	}
	return fmt.Sprintf("layout error kind=%d", uint8(k))
}

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind   LayoutErrorKind
	Type   string
	Cycle  []string // for ErrRecursiveValueType
	Detail string
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrRecursiveValueType:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (%s)", e.Type)
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(e.Cycle, " -> "))
	case ErrMissingSizeInfo:
		if e.Detail != "" {
			return fmt.Sprintf("no size information for %s: %s", e.Type, e.Detail)
		}
		return fmt.Sprintf("no size information for %s", e.Type)
	default:
		return fmt.Sprintf("%s (%s)", e.Kind, e.Type)
	}
}

// Is matches layout errors of the same kind, so callers can test with a
// bare &LayoutError{Kind: ...} target.
func (e *LayoutError) Is(target error) bool {
	t, ok := target.(*LayoutError)
	return ok && e != nil && t.Kind == e.Kind && (t.Type == "" || t.Type == e.Type)
}

package names

import (
	"errors"
	"fmt"
)

// ErrTooDeep reports a reference chain deeper than any well-formed snapshot
// produces.
var ErrTooDeep = errors.New("type reference nests too deeply")

// UnresolvedGenericError reports a generic parameter with no argument in
// scope inside a type that is not itself a template.
type UnresolvedGenericError struct {
	Param string
	Owner string
}

func (e *UnresolvedGenericError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("unresolved generic argument %q in %s", e.Param, e.Owner)
}

package driver

import (
	"errors"
	"fmt"

	"nativebind/internal/deps"
	"nativebind/internal/diag"
	"nativebind/internal/layout"
	"nativebind/internal/metadata"
	"nativebind/internal/model"
	"nativebind/internal/names"
	"nativebind/internal/observ"
	"nativebind/internal/types"
)

// ErrDependencyFailed marks a type whose embedded value type failed.
var ErrDependencyFailed = errors.New("embedded value type failed")

// Request configures one generation run.
type Request struct {
	Snapshot *metadata.Snapshot
	Target   layout.Target
	// Deny extends the snapshot deny-list with fully qualified names.
	Deny []string
	// Jobs bounds the workers of one batch; 0 means GOMAXPROCS.
	Jobs int
	// IncludeTemplates builds unspecialized generic definitions too.
	IncludeTemplates bool
	// MaxDiagnostics caps the diagnostics kept per type; 0 is unbounded.
	MaxDiagnostics int

	Progress ProgressSink
	Phases   PhaseObserver
	Timer    *observ.Timer
}

// Outcome classifies the result of one type.
type Outcome uint8

const (
	OutcomeGenerated Outcome = iota
	OutcomeExcluded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGenerated:
		return "generated"
	case OutcomeExcluded:
		return "excluded"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// TypeError is the fatal error of one type.
type TypeError struct {
	Name string
	Key  types.Key
	Err  error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }

// TypeResult is the outcome of one key.
type TypeResult struct {
	ID           types.KeyID
	Key          types.Key
	Name         string
	Namespace    string
	Outcome      Outcome
	Model        *model.TypeModel
	Requirements deps.Requirements
	Err          error
	Embeds       []types.KeyID
}

// Result is the outcome of a generation run. Types are in KeyID order.
type Result struct {
	Types         []TypeResult
	Order         [][]types.KeyID
	Diagnostics   *diag.Bag
	UnmatchedDeny []string
	Timer         *observ.Timer

	env   *names.Env
	index map[types.KeyID]int
}

// Type returns the result of id.
func (r *Result) Type(id types.KeyID) (*TypeResult, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return &r.Types[i], true
}

// Find returns the first result whose name is full.
func (r *Result) Find(full string) (*TypeResult, bool) {
	for i := range r.Types {
		if r.Types[i].Name == full {
			return &r.Types[i], true
		}
	}
	return nil, false
}

// Models returns the generated models in KeyID order.
func (r *Result) Models() []*model.TypeModel {
	var out []*model.TypeModel
	for i := range r.Types {
		if r.Types[i].Model != nil {
			out = append(out, r.Types[i].Model)
		}
	}
	return out
}

// Failed returns the failed types in KeyID order.
func (r *Result) Failed() []*TypeResult { return r.with(OutcomeFailed) }

// Excluded returns the excluded types in KeyID order.
func (r *Result) Excluded() []*TypeResult { return r.with(OutcomeExcluded) }

func (r *Result) with(o Outcome) []*TypeResult {
	var out []*TypeResult
	for i := range r.Types {
		if r.Types[i].Outcome == o {
			out = append(out, &r.Types[i])
		}
	}
	return out
}

// Counts returns the number of generated, excluded and failed types.
func (r *Result) Counts() (generated, excluded, failed int) {
	for i := range r.Types {
		switch r.Types[i].Outcome {
		case OutcomeGenerated:
			generated++
		case OutcomeExcluded:
			excluded++
		case OutcomeFailed:
			failed++
		}
	}
	return generated, excluded, failed
}

// KeyName renders id for output: the result name when the key was part of
// the run, the definition name otherwise.
func (r *Result) KeyName(id types.KeyID) string {
	if t, ok := r.Type(id); ok {
		return t.Name
	}
	if r.env == nil {
		return fmt.Sprintf("<key#%d>", id)
	}
	k, ok := r.env.Keys.Lookup(id)
	if !ok {
		return fmt.Sprintf("<key#%d>", id)
	}
	return r.env.FullName(k)
}

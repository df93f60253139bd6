package trace

import "time"

// Kind is the kind of a trace event.
type Kind uint8

const (
	KindBegin Kind = iota + 1
	KindEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "begin"
	case KindEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

// Scope is the granularity of an event. Finer scopes have larger values.
type Scope uint8

const (
	ScopeDriver Scope = iota + 1 // one generation run
	ScopePass                    // prepare, order, build
	ScopeBatch                   // one batch of independent types
	ScopeType                    // one type model
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeBatch:
		return "batch"
	case ScopeType:
		return "type"
	}
	return "unknown"
}

// Attr is a key/value pair attached to an end event. Attrs keep the order
// they were added in.
type Attr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	Name     string // pass name, "batch 3" or a type name
	Detail   string
	Elapsed  time.Duration // set on end events
	Attrs    []Attr
}

package trace

import (
	"fmt"
	"strings"
)

// Level is the finest scope a tracer records.
type Level uint8

const (
	LevelOff   Level = 0
	LevelPass  Level = Level(ScopePass)
	LevelBatch Level = Level(ScopeBatch)
	LevelType  Level = Level(ScopeType)
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelPass:
		return "pass"
	case LevelBatch:
		return "batch"
	case LevelType:
		return "type"
	}
	return "unknown"
}

// ParseLevel accepts off, pass, batch or type in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return LevelOff, nil
	case "pass":
		return LevelPass, nil
	case "batch":
		return LevelBatch, nil
	case "type":
		return LevelType, nil
	}
	return LevelOff, fmt.Errorf("invalid trace level %q (expected off|pass|batch|type)", s)
}

// ShouldEmit reports whether events of scope are recorded at l. Driver
// events are recorded at every level but off.
func (l Level) ShouldEmit(scope Scope) bool {
	return l != LevelOff && uint8(scope) <= uint8(l)
}

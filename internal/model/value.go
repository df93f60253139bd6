package model

import (
	"math"
	"strconv"
)

// ValueKind tags a decoded default value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueUint
	ValueFloat32
	ValueFloat64
	ValueChar
	ValueString
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueUint:
		return "uint"
	case ValueFloat32:
		return "float32"
	case ValueFloat64:
		return "float64"
	case ValueChar:
		return "char"
	case ValueString:
		return "string"
	}
	return "unknown"
}

// Value is a constant default. Bits holds integers, bools and the raw IEEE
// bits of floats; Width is the encoded width in bits.
type Value struct {
	Kind  ValueKind `msgpack:"kind" json:"kind"`
	Bits  uint64    `msgpack:"bits,omitempty" json:"bits,omitempty"`
	Width uint8     `msgpack:"width,omitempty" json:"width,omitempty"`
	Char  rune      `msgpack:"char,omitempty" json:"char,omitempty"`
	Str   string    `msgpack:"str,omitempty" json:"str,omitempty"`
	// Unsupported marks a null standing in for an undecodable container.
	Unsupported bool `msgpack:"unsupported,omitempty" json:"unsupported,omitempty"`
}

// Int returns the sign-extended integer value.
func (v Value) Int() int64 {
	switch v.Width {
	case 8:
		return int64(int8(v.Bits)) //nolint:gosec // sign extension
	case 16:
		return int64(int16(v.Bits)) //nolint:gosec // sign extension
	case 32:
		return int64(int32(v.Bits)) //nolint:gosec // sign extension
	}
	return int64(v.Bits) //nolint:gosec // bit pattern
}

// Float returns the floating-point value.
func (v Value) Float() float64 {
	if v.Kind == ValueFloat32 {
		return float64(math.Float32frombits(uint32(v.Bits))) //nolint:gosec // low 32 bits
	}
	return math.Float64frombits(v.Bits)
}

// Bool returns the boolean value.
func (v Value) Bool() bool { return v.Bits != 0 }

func (v Value) String() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool())
	case ValueInt:
		return strconv.FormatInt(v.Int(), 10)
	case ValueUint:
		return strconv.FormatUint(v.Bits, 10)
	case ValueFloat32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case ValueFloat64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case ValueChar:
		return strconv.QuoteRune(v.Char)
	case ValueString:
		return strconv.Quote(v.Str)
	}
	return "null"
}

package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"nativebind/internal/metadata"
)

var (
	// ErrUnknownConstantTag reports a blob tag outside the constant kinds.
	ErrUnknownConstantTag = errors.New("unknown constant tag")
	// ErrTruncatedConstant reports a blob shorter than its encoding.
	ErrTruncatedConstant = errors.New("truncated constant blob")
	// ErrInvalidConstantString reports string bytes that are not UTF-8.
	ErrInvalidConstantString = errors.New("constant string is not valid UTF-8")
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeConstant decodes the default value stored for a constant of the
// given tag. A nil blob decodes to Null.
func DecodeConstant(tag metadata.Tag, blob []byte) (Value, error) {
	if blob == nil {
		return Value{Kind: ValueNull}, nil
	}
	c := cursor{b: blob}
	switch tag {
	case metadata.TagBoolean:
		b, err := c.fixed(1)
		return Value{Kind: ValueBool, Bits: uint64(b[0] & 1), Width: 8}, err
	case metadata.TagI1, metadata.TagU1:
		b, err := c.fixed(1)
		if err != nil {
			return Value{}, err
		}
		return intValue(tag, uint64(b[0]), 8), nil
	case metadata.TagI2, metadata.TagU2:
		b, err := c.fixed(2)
		if err != nil {
			return Value{}, err
		}
		return intValue(tag, uint64(binary.LittleEndian.Uint16(b)), 16), nil
	case metadata.TagI4:
		v, err := c.compressedInt32()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueInt, Bits: uint64(uint32(v)), Width: 32}, nil //nolint:gosec // bit pattern
	case metadata.TagU4:
		b, err := c.fixed(4)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueUint, Bits: uint64(binary.LittleEndian.Uint32(b)), Width: 32}, nil
	case metadata.TagI8, metadata.TagU8, metadata.TagI, metadata.TagU:
		b, err := c.fixed(8)
		if err != nil {
			return Value{}, err
		}
		return intValue(tag, binary.LittleEndian.Uint64(b), 64), nil
	case metadata.TagR4:
		b, err := c.fixed(4)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueFloat32, Bits: uint64(binary.LittleEndian.Uint32(b)), Width: 32}, nil
	case metadata.TagR8:
		b, err := c.fixed(8)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueFloat64, Bits: binary.LittleEndian.Uint64(b), Width: 64}, nil
	case metadata.TagChar:
		b, err := c.fixed(2)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueChar, Char: decodeUTF16Unit(b), Width: 16}, nil
	case metadata.TagString:
		return c.string()
	case metadata.TagClass, metadata.TagValueType, metadata.TagGenericInst,
		metadata.TagArray, metadata.TagSzArray, metadata.TagPtr, metadata.TagByRef, metadata.TagObject:
		return Value{Kind: ValueNull, Unsupported: true}, nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnknownConstantTag, tag)
}

func intValue(tag metadata.Tag, bits uint64, width uint8) Value {
	switch tag {
	case metadata.TagU1, metadata.TagU2, metadata.TagU4, metadata.TagU8, metadata.TagU:
		return Value{Kind: ValueUint, Bits: bits, Width: width}
	}
	return Value{Kind: ValueInt, Bits: bits, Width: width}
}

func decodeUTF16Unit(b []byte) rune {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil || len(out) == 0 {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRune(out)
	return r
}

type cursor struct {
	b   []byte
	off int
}

func (c *cursor) fixed(n int) ([]byte, error) {
	if c.off+n > len(c.b) {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrTruncatedConstant, n, c.off, len(c.b)-c.off)
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out, nil
}

func (c *cursor) byte() (byte, error) {
	b, err := c.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// compressedUint32 reads the variable-width unsigned encoding.
func (c *cursor) compressedUint32() (uint32, error) {
	first, err := c.byte()
	if err != nil {
		return 0, err
	}
	switch {
	case first&0x80 == 0:
		return uint32(first), nil
	case first&0xC0 == 0x80:
		b, err := c.fixed(1)
		if err != nil {
			return 0, err
		}
		return uint32(first&^0x80)<<8 | uint32(b[0]), nil
	case first&0xE0 == 0xC0:
		b, err := c.fixed(3)
		if err != nil {
			return 0, err
		}
		return uint32(first&^0xC0)<<24 | uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
	case first == 0xF0:
		b, err := c.fixed(4)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(b), nil
	case first == 0xFE:
		return math.MaxUint32 - 1, nil
	case first == 0xFF:
		return math.MaxUint32, nil
	}
	return 0, fmt.Errorf("%w: invalid compressed prefix 0x%02x", ErrTruncatedConstant, first)
}

// compressedInt32 reads the zig-zag style signed encoding.
func (c *cursor) compressedInt32() (int32, error) {
	u, err := c.compressedUint32()
	if err != nil {
		return 0, err
	}
	if u == math.MaxUint32 {
		return math.MinInt32, nil
	}
	neg := u&1 != 0
	mag := int32(u >> 1) //nolint:gosec // u>>1 fits
	if neg {
		return -mag - 1, nil
	}
	return mag, nil
}

func (c *cursor) string() (Value, error) {
	n, err := c.compressedInt32()
	if err != nil {
		return Value{}, err
	}
	if n == -1 {
		return Value{Kind: ValueString}, nil
	}
	if n < 0 {
		return Value{}, fmt.Errorf("%w: negative string length %d", ErrTruncatedConstant, n)
	}
	b, err := c.fixed(int(n))
	if err != nil {
		return Value{}, err
	}
	if !utf8.Valid(b) {
		return Value{}, ErrInvalidConstantString
	}
	return Value{Kind: ValueString, Str: string(b)}, nil
}

// EncodeCompressedInt32 is the inverse of the signed compressed read. It is
// used by snapshot producers and tests.
func EncodeCompressedInt32(v int32) []byte {
	if v == math.MinInt32 {
		return []byte{0xFF}
	}
	var u uint32
	if v < 0 {
		u = uint32(-(v+1))<<1 | 1 //nolint:gosec // v+1 <= 0
	} else {
		u = uint32(v) << 1 //nolint:gosec // v >= 0
	}
	return EncodeCompressedUint32(u)
}

// EncodeCompressedUint32 writes the shortest unsigned compressed form.
func EncodeCompressedUint32(u uint32) []byte {
	switch {
	case u < 0x80:
		return []byte{byte(u)}
	case u < 0x4000:
		return []byte{byte(u>>8) | 0x80, byte(u)}
	case u < 0x20000000:
		return []byte{byte(u>>24) | 0xC0, byte(u >> 16), byte(u >> 8), byte(u)}
	case u == math.MaxUint32-1:
		return []byte{0xFE}
	case u == math.MaxUint32:
		return []byte{0xFF}
	}
	out := []byte{0xF0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(out[1:], u)
	return out
}

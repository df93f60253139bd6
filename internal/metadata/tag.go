package metadata

import "fmt"

// Tag is the element-type code of a type reference (ECMA-335 II.23.1.16).
type Tag uint8

const (
	TagEnd         Tag = 0x00
	TagVoid        Tag = 0x01
	TagBoolean     Tag = 0x02
	TagChar        Tag = 0x03
	TagI1          Tag = 0x04
	TagU1          Tag = 0x05
	TagI2          Tag = 0x06
	TagU2          Tag = 0x07
	TagI4          Tag = 0x08
	TagU4          Tag = 0x09
	TagI8          Tag = 0x0a
	TagU8          Tag = 0x0b
	TagR4          Tag = 0x0c
	TagR8          Tag = 0x0d
	TagString      Tag = 0x0e
	TagPtr         Tag = 0x0f
	TagByRef       Tag = 0x10
	TagValueType   Tag = 0x11
	TagClass       Tag = 0x12
	TagVar         Tag = 0x13
	TagArray       Tag = 0x14
	TagGenericInst Tag = 0x15
	TagTypedByRef  Tag = 0x16
	TagI           Tag = 0x18
	TagU           Tag = 0x19
	TagFnPtr       Tag = 0x1b
	TagObject      Tag = 0x1c
	TagSzArray     Tag = 0x1d
	TagMVar        Tag = 0x1e
)

var tagNames = map[Tag]string{
	TagEnd:         "end",
	TagVoid:        "void",
	TagBoolean:     "bool",
	TagChar:        "char",
	TagI1:          "i1",
	TagU1:          "u1",
	TagI2:          "i2",
	TagU2:          "u2",
	TagI4:          "i4",
	TagU4:          "u4",
	TagI8:          "i8",
	TagU8:          "u8",
	TagR4:          "r4",
	TagR8:          "r8",
	TagString:      "string",
	TagPtr:         "ptr",
	TagByRef:       "byref",
	TagValueType:   "valuetype",
	TagClass:       "class",
	TagVar:         "var",
	TagArray:       "array",
	TagGenericInst: "genericinst",
	TagTypedByRef:  "typedbyref",
	TagI:           "i",
	TagU:           "u",
	TagFnPtr:       "fnptr",
	TagObject:      "object",
	TagSzArray:     "szarray",
	TagMVar:        "mvar",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tag(0x%02x)", uint8(t))
}

// Known reports whether t is one of the recognized element types.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// IsPrimitive reports tags that name a built-in scalar, string or void.
func (t Tag) IsPrimitive() bool {
	switch t {
	case TagVoid, TagBoolean, TagChar,
		TagI1, TagU1, TagI2, TagU2, TagI4, TagU4, TagI8, TagU8,
		TagR4, TagR8, TagString, TagI, TagU:
		return true
	}
	return false
}

// IsInteger reports fixed-width integer tags.
func (t Tag) IsInteger() bool {
	switch t {
	case TagI1, TagU1, TagI2, TagU2, TagI4, TagU4, TagI8, TagU8:
		return true
	}
	return false
}

// IsDefinitionRef reports tags whose payload is a type definition.
func (t Tag) IsDefinitionRef() bool {
	switch t {
	case TagClass, TagValueType, TagObject, TagString, TagTypedByRef:
		return true
	}
	return false
}

package model

import (
	"errors"
	"math"
	"testing"
	"unicode/utf8"

	"nativebind/internal/metadata"
)

func TestDecodeFixedWidth(t *testing.T) {
	cases := []struct {
		tag  metadata.Tag
		blob []byte
		kind ValueKind
		want string
	}{
		{metadata.TagBoolean, []byte{1}, ValueBool, "true"},
		{metadata.TagI1, []byte{0xFF}, ValueInt, "-1"},
		{metadata.TagU1, []byte{0xFF}, ValueUint, "255"},
		{metadata.TagI2, []byte{0x00, 0x80}, ValueInt, "-32768"},
		{metadata.TagU2, []byte{0x34, 0x12}, ValueUint, "4660"},
		{metadata.TagU4, []byte{0xFF, 0xFF, 0xFF, 0xFF}, ValueUint, "4294967295"},
		{metadata.TagI8, []byte{0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, ValueInt, "-2"},
		{metadata.TagR4, []byte{0x00, 0x00, 0xC0, 0x3F}, ValueFloat32, "1.5"},
		{metadata.TagR8, []byte{0, 0, 0, 0, 0, 0, 0x04, 0x40}, ValueFloat64, "2.5"},
	}
	for _, tc := range cases {
		v, err := DecodeConstant(tc.tag, tc.blob)
		if err != nil {
			t.Fatalf("%s: %v", tc.tag, err)
		}
		if v.Kind != tc.kind || v.String() != tc.want {
			t.Fatalf("%s: got %s %s, want %s %s", tc.tag, v.Kind, v, tc.kind, tc.want)
		}
	}
}

func TestDecodeCompressedInt32(t *testing.T) {
	for _, want := range []int32{0, 1, -1, 63, -64, 64, 1000, -1000, 1 << 20, -(1 << 27), math.MaxInt32, math.MinInt32} {
		v, err := DecodeConstant(metadata.TagI4, EncodeCompressedInt32(want))
		if err != nil {
			t.Fatalf("%d: %v", want, err)
		}
		if v.Int() != int64(want) {
			t.Fatalf("round trip of %d gave %d", want, v.Int())
		}
	}
	v, err := DecodeConstant(metadata.TagI4, []byte{0x03})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Int() != -2 {
		t.Fatalf("0x03 must decode to -2, got %d", v.Int())
	}
}

func TestDecodeChar(t *testing.T) {
	v, err := DecodeConstant(metadata.TagChar, []byte{0x41, 0x00})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != ValueChar || v.Char != 'A' {
		t.Fatalf("expected 'A', got %v", v)
	}
	v, err = DecodeConstant(metadata.TagChar, []byte{0x00, 0xD8})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Char != utf8.RuneError {
		t.Fatalf("lone surrogate must decode to the replacement rune, got %U", v.Char)
	}
}

func TestDecodeString(t *testing.T) {
	text := "héllo"
	blob := append(EncodeCompressedInt32(int32(len(text))), text...)
	v, err := DecodeConstant(metadata.TagString, blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != ValueString || v.Str != text {
		t.Fatalf("got %v", v)
	}

	v, err = DecodeConstant(metadata.TagString, EncodeCompressedInt32(-1))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != ValueString || v.Str != "" {
		t.Fatalf("length -1 must decode to empty, got %v", v)
	}

	_, err = DecodeConstant(metadata.TagString, []byte{0x08, 0x41})
	if !errors.Is(err, ErrTruncatedConstant) {
		t.Fatalf("expected truncation error, got %v", err)
	}
	_, err = DecodeConstant(metadata.TagString, []byte{0x04, 0xFF, 0xFE})
	if !errors.Is(err, ErrInvalidConstantString) {
		t.Fatalf("expected invalid string error, got %v", err)
	}
}

func TestDecodeContainersAndUnknownTags(t *testing.T) {
	v, err := DecodeConstant(metadata.TagSzArray, []byte{0})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != ValueNull || !v.Unsupported {
		t.Fatalf("container defaults are unsupported nulls, got %+v", v)
	}
	if _, err := DecodeConstant(metadata.Tag(0x41), []byte{0}); !errors.Is(err, ErrUnknownConstantTag) {
		t.Fatalf("expected unknown tag error, got %v", err)
	}
	v, err = DecodeConstant(metadata.TagI4, nil)
	if err != nil || v.Kind != ValueNull {
		t.Fatalf("nil blob must decode to null, got %+v, %v", v, err)
	}
}

package ir

import (
	"errors"
	"math"
	"testing"
)

func TestValueSize(t *testing.T) {
	tests := []struct {
		v    Value
		size int
	}{
		{Null(), 0},
		{Bool(true), 1},
		{Int8(-1), 1},
		{Uint16(1), 2},
		{Int32(1), 4},
		{Float32(1), 4},
		{Uint64(1), 8},
		{Float64(1), 8},
		{String("abc"), 3},
		{Binary([]byte{1, 2}), 2},
		{String(""), 0},
	}
	for _, tc := range tests {
		if got := tc.v.Size(); got != tc.size {
			t.Errorf("%s %s: size %d, want %d", tc.v.Type(), tc.v, got, tc.size)
		}
		if tc.v.Type().Width() > 0 && len(tc.v.Data()) != tc.size {
			t.Errorf("%s: data length %d", tc.v.Type(), len(tc.v.Data()))
		}
	}
	if d := Int16(-2).Data(); d[0] != 0xfe || d[1] != 0xff {
		t.Errorf("Int16 data %x", d)
	}
}

func TestIntConversions(t *testing.T) {
	if x, err := Int[int8](Int64(-128)); err != nil || x != -128 {
		t.Errorf("in range: %d %v", x, err)
	}
	for _, v := range []Value{Int64(128), Uint64(math.MaxUint64), Float64(1.5), String("1")} {
		if _, err := Int[int8](v); !errors.Is(err, ErrType) {
			t.Errorf("Int[int8](%s %s): %v", v.Type(), v, err)
		}
	}
	if x, err := Int[int64](Float64(-3)); err != nil || x != -3 {
		t.Errorf("integral float: %d %v", x, err)
	}
	if x, err := Uint[uint64](Uint64(math.MaxUint64)); err != nil || x != math.MaxUint64 {
		t.Errorf("max uint: %d %v", x, err)
	}
	for _, v := range []Value{Int8(-1), Uint32(256), Float32(-1)} {
		if _, err := Uint[uint8](v); !errors.Is(err, ErrType) {
			t.Errorf("Uint[uint8](%s %s): %v", v.Type(), v, err)
		}
	}
	if f, err := Float[float32](Float64(1e300)); !errors.Is(err, ErrType) {
		t.Errorf("float32 overflow: %v %v", f, err)
	}
	if f, err := Float[float64](Int8(-7)); err != nil || f != -7 {
		t.Errorf("int to float: %v %v", f, err)
	}
	if f, err := Float[float32](Float64(math.Inf(1))); err != nil || !math.IsInf(float64(f), 1) {
		t.Errorf("infinity: %v %v", f, err)
	}
}

func TestValueAccessors(t *testing.T) {
	if b, err := Bool(true).AsBool(); err != nil || !b {
		t.Errorf("AsBool")
	}
	if _, err := Int8(1).AsBool(); !errors.Is(err, ErrType) {
		t.Errorf("AsBool on int: %v", err)
	}
	if s, err := String("x").Str(); err != nil || s != "x" {
		t.Errorf("Str: %q %v", s, err)
	}
	if _, err := Binary(nil).Str(); !errors.Is(err, ErrType) {
		t.Errorf("Str on binary: %v", err)
	}
	if b, err := String("x").Bytes(); err != nil || string(b) != "x" {
		t.Errorf("Bytes on string: %q %v", b, err)
	}
	if FromWord(I16Type, Int16(-5).Word()).String() != "-5" {
		t.Errorf("FromWord")
	}
}

func TestValueEqual(t *testing.T) {
	equal := [][2]Value{
		{Int8(5), Uint64(5)},
		{Int64(-5), Int16(-5)},
		{Float32(1.5), Float64(1.5)},
		{String("a"), String("a")},
		{Null(), Null()},
	}
	for _, p := range equal {
		if !p[0].Equal(p[1]) || p[0].Hash() != p[1].Hash() {
			t.Errorf("%s %s vs %s %s: not equal", p[0].Type(), p[0], p[1].Type(), p[1])
		}
	}
	differ := [][2]Value{
		{Int64(1), Float64(1)},
		{String("a"), Binary([]byte("a"))},
		{Int64(-1), Uint64(math.MaxUint64)},
		{Bool(false), Null()},
	}
	for _, p := range differ {
		if p[0].Equal(p[1]) {
			t.Errorf("%s %s vs %s %s: equal", p[0].Type(), p[0], p[1].Type(), p[1])
		}
	}
}

func TestTypeText(t *testing.T) {
	for _, ty := range Types() {
		d, _ := ty.MarshalText()
		var got Type
		if err := got.UnmarshalText(d); err != nil || got != ty {
			t.Errorf("%s: %v %v", d, got, err)
		}
	}
}

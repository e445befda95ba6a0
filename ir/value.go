package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Value is a leaf of a document: a scalar held inline in a 64 bit word,
// or a string or binary payload referencing bytes owned elsewhere.
//
// Values produced by a Tree reference the Tree's arena and become invalid
// when the Tree is reset. Values returned by a Codec reference codec or
// Source memory and are valid until the next Read.
type Value struct {
	typ  Type
	word uint64
	data []byte
}

func Null() Value           { return Value{typ: NullType} }
func Int8(v int8) Value     { return Value{typ: I8Type, word: uint64(int64(v))} }
func Int16(v int16) Value   { return Value{typ: I16Type, word: uint64(int64(v))} }
func Int32(v int32) Value   { return Value{typ: I32Type, word: uint64(int64(v))} }
func Int64(v int64) Value   { return Value{typ: I64Type, word: uint64(v)} }
func Uint8(v uint8) Value   { return Value{typ: UI8Type, word: uint64(v)} }
func Uint16(v uint16) Value { return Value{typ: UI16Type, word: uint64(v)} }
func Uint32(v uint32) Value { return Value{typ: UI32Type, word: uint64(v)} }
func Uint64(v uint64) Value { return Value{typ: UI64Type, word: v} }

func Bool(b bool) Value {
	if b {
		return Value{typ: BoolType, word: 1}
	}
	return Value{typ: BoolType}
}

func Float32(f float32) Value {
	return Value{typ: FP32Type, word: uint64(math.Float32bits(f))}
}

func Float64(f float64) Value {
	return Value{typ: FP64Type, word: math.Float64bits(f)}
}

// String makes a String value referencing the bytes of s.
func String(s string) Value {
	return Value{typ: StringType, data: unsafe.Slice(unsafe.StringData(s), len(s))}
}

// StringBytes makes a String value referencing b.
func StringBytes(b []byte) Value {
	return Value{typ: StringType, data: b}
}

// Binary makes a Binary value referencing b.
func Binary(b []byte) Value {
	return Value{typ: BinaryType, data: b}
}

// Object, Array and End are the scope events exchanged with codecs.
func Object() Value { return Value{typ: ObjectType} }
func Array() Value  { return Value{typ: ArrayType} }
func End() Value    { return Value{typ: EndType} }

// Scope returns the scope opening event for kind.
func Scope(kind Type) Value {
	if !kind.IsScope() {
		panic(fmt.Sprintf("ir: %s is not a scope", kind))
	}
	return Value{typ: kind}
}

// FromWord builds a fixed size value of type t from its raw word as
// returned by Word.
func FromWord(t Type, w uint64) Value {
	return Value{typ: t, word: w}
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsNull() bool { return v.typ == NullType }

// Word returns the raw inline word: integers sign or zero extended, and
// floats as their IEEE bits at their own width.
func (v Value) Word() uint64 { return v.word }

// Size returns the payload byte count.
func (v Value) Size() int {
	switch v.typ {
	case StringType, BinaryType:
		return len(v.data)
	}
	return v.typ.Width()
}

// Data returns the payload bytes. Scalars are returned little endian at
// their width in a new slice.
func (v Value) Data() []byte {
	switch v.typ {
	case StringType, BinaryType:
		return v.data
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v.word)
	return b[:v.typ.Width()]
}

func (v Value) typeErr(want string) error {
	return fmt.Errorf("%w: %s value %s is not %s", ErrType, v.typ, v, want)
}

// AsBool returns the payload of a Bool value.
func (v Value) AsBool() (bool, error) {
	if v.typ != BoolType {
		return false, v.typeErr("Bool")
	}
	return v.word != 0, nil
}

// Str returns a copy of the payload of a String value.
func (v Value) Str() (string, error) {
	if v.typ != StringType {
		return "", v.typeErr("String")
	}
	return string(v.data), nil
}

// Bytes returns the payload of a String or Binary value without copying.
func (v Value) Bytes() ([]byte, error) {
	if v.typ != StringType && v.typ != BinaryType {
		return nil, v.typeErr("String or Binary")
	}
	return v.data, nil
}

func (v Value) float() float64 {
	if v.typ == FP32Type {
		return float64(math.Float32frombits(uint32(v.word)))
	}
	return math.Float64frombits(v.word)
}

// Int converts an integer value, or an integral float, to T, failing when
// the value does not fit.
func Int[T constraints.Signed](v Value) (T, error) {
	var x int64
	switch {
	case v.typ.IsSigned():
		x = int64(v.word)
	case v.typ.IsInt():
		if v.word > math.MaxInt64 {
			return 0, v.rangeErr(T(0))
		}
		x = int64(v.word)
	case v.typ.IsFloat():
		f := v.float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, v.rangeErr(T(0))
		}
		x = int64(f)
	default:
		return 0, v.typeErr("a number")
	}
	if int64(T(x)) != x {
		return 0, v.rangeErr(T(0))
	}
	return T(x), nil
}

// Uint is Int for unsigned targets.
func Uint[T constraints.Unsigned](v Value) (T, error) {
	var x uint64
	switch {
	case v.typ.IsSigned():
		if int64(v.word) < 0 {
			return 0, v.rangeErr(T(0))
		}
		x = v.word
	case v.typ.IsInt():
		x = v.word
	case v.typ.IsFloat():
		f := v.float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, v.rangeErr(T(0))
		}
		x = uint64(f)
	default:
		return 0, v.typeErr("a number")
	}
	if uint64(T(x)) != x {
		return 0, v.rangeErr(T(0))
	}
	return T(x), nil
}

// Float converts a numeric value to T. Finite values out of the range of
// T fail.
func Float[T constraints.Float](v Value) (T, error) {
	var f float64
	switch {
	case v.typ.IsFloat():
		f = v.float()
	case v.typ.IsSigned():
		f = float64(int64(v.word))
	case v.typ.IsInt():
		f = float64(v.word)
	default:
		return 0, v.typeErr("a number")
	}
	t := T(f)
	if math.IsInf(float64(t), 0) && !math.IsInf(f, 0) {
		return 0, v.rangeErr(T(0))
	}
	return t, nil
}

func (v Value) rangeErr(target any) error {
	return fmt.Errorf("%w: %s value %s out of range for %T", ErrType, v.typ, v, target)
}

func (v Value) Int64() (int64, error)     { return Int[int64](v) }
func (v Value) Uint64() (uint64, error)   { return Uint[uint64](v) }
func (v Value) Float64() (float64, error) { return Float[float64](v) }

// Equal reports whether v and o hold the same data. Numbers compare by
// value regardless of width and signedness, so an I8 5 equals a UI64 5.
func (v Value) Equal(o Value) bool {
	switch {
	case v.typ.IsNumber() && o.typ.IsNumber():
		return v.canonical() == o.canonical()
	case v.typ != o.typ:
		return false
	case v.typ == StringType || v.typ == BinaryType:
		return bytes.Equal(v.data, o.data)
	}
	return v.word == o.word
}

type canonNum struct {
	kind byte // 'u', 'i' or 'f'
	bits uint64
}

// canonical maps numbers onto one representation per mathematical value:
// non-negative integers as unsigned, negative integers as signed, floats
// as float64.
func (v Value) canonical() canonNum {
	switch {
	case v.typ.IsFloat():
		return canonNum{'f', math.Float64bits(v.float())}
	case v.typ.IsSigned() && int64(v.word) < 0:
		return canonNum{'i', v.word}
	}
	return canonNum{'u', v.word}
}

// String renders v as JSON like text for diagnostics.
func (v Value) String() string {
	return string(v.appendText(nil))
}

func (v Value) appendText(dst []byte) []byte {
	switch v.typ {
	case NullType:
		return append(dst, "null"...)
	case BoolType:
		return strconv.AppendBool(dst, v.word != 0)
	case I8Type, I16Type, I32Type, I64Type:
		return strconv.AppendInt(dst, int64(v.word), 10)
	case UI8Type, UI16Type, UI32Type, UI64Type:
		return strconv.AppendUint(dst, v.word, 10)
	case FP32Type:
		return strconv.AppendFloat(dst, v.float(), 'g', -1, 32)
	case FP64Type:
		return strconv.AppendFloat(dst, v.float(), 'g', -1, 64)
	case StringType:
		return strconv.AppendQuote(dst, string(v.data))
	case BinaryType:
		dst = append(dst, "b64:"...)
		return base64.StdEncoding.AppendEncode(dst, v.data)
	case ObjectType:
		return append(dst, '{')
	case ArrayType:
		return append(dst, '[')
	case EndType:
		return append(dst, "<end>"...)
	}
	return append(dst, "<invalid>"...)
}

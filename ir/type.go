package ir

import "fmt"

type Type uint8

const (
	NullType Type = iota
	BoolType
	I8Type
	UI8Type
	I16Type
	UI16Type
	I32Type
	UI32Type
	I64Type
	UI64Type
	FP32Type
	FP64Type
	StringType
	BinaryType
	ObjectType
	ArrayType
	// EndType closes a scope in codec events. It is never stored.
	EndType
)

var typeNames = [...]string{
	NullType:   "Null",
	BoolType:   "Bool",
	I8Type:     "I8",
	UI8Type:    "UI8",
	I16Type:    "I16",
	UI16Type:   "UI16",
	I32Type:    "I32",
	UI32Type:   "UI32",
	I64Type:    "I64",
	UI64Type:   "UI64",
	FP32Type:   "FP32",
	FP64Type:   "FP64",
	StringType: "String",
	BinaryType: "Binary",
	ObjectType: "Object",
	ArrayType:  "Array",
	EndType:    "End",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "<unknown type>"
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(d []byte) error {
	for i, name := range typeNames {
		if name == string(d) {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("unrecognized type %q", d)
}

func Types() []Type {
	res := make([]Type, 0, len(typeNames))
	for i := range typeNames {
		res = append(res, Type(i))
	}
	return res
}

func (t Type) IsLeaf() bool {
	return t < ObjectType
}

func (t Type) IsScope() bool {
	return t == ObjectType || t == ArrayType
}

func (t Type) IsInt() bool {
	return t >= I8Type && t <= UI64Type
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t {
	case I8Type, I16Type, I32Type, I64Type:
		return true
	}
	return false
}

func (t Type) IsFloat() bool {
	return t == FP32Type || t == FP64Type
}

func (t Type) IsNumber() bool {
	return t.IsInt() || t.IsFloat()
}

// Width returns the payload size in bytes of fixed size types, and 0 for
// the others.
func (t Type) Width() int {
	switch t {
	case BoolType, I8Type, UI8Type:
		return 1
	case I16Type, UI16Type:
		return 2
	case I32Type, UI32Type, FP32Type:
		return 4
	case I64Type, UI64Type, FP64Type:
		return 8
	}
	return 0
}

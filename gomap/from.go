package gomap

import (
	"bytes"
	"encoding"
	"reflect"
	"strconv"
	"strings"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/ir"
)

// TreeUnmarshaler is implemented by types that restore themselves from a
// document field.
type TreeUnmarshaler interface {
	UnmarshalTree(f ir.Field) error
}

type unmapper struct {
	tree *ir.Tree
	opts *opts
}

// FromTree restores the document of t into dst, which must be a non nil
// pointer. Fields of a lazily opened document are read as they are
// needed.
func FromTree(t *ir.Tree, dst any, options ...Option) error {
	val := reflect.ValueOf(dst)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return &UnmarshalError{Message: "destination must be a non nil pointer", Err: ir.ErrType}
	}
	root := t.Root()
	if root == nil {
		return &UnmarshalError{Message: "empty document", Err: ir.ErrLookup}
	}
	u := &unmapper{tree: t, opts: makeOpts(options)}
	elem := val.Elem()
	for elem.Kind() == reflect.Pointer {
		if elem.IsNil() {
			elem.Set(reflect.New(elem.Type().Elem()))
		}
		elem = elem.Elem()
	}
	if debug.Parse() {
		debug.Logf("gomap restore %s from %s\n", elem.Type(), root.Kind())
	}
	if _, wrapped := rootKind(elem.Type()); wrapped {
		// BSON reads a root array back as an object
		f, _, err := root.ConsumeAt(0, ir.ErrOnMiss)
		if err != nil {
			return wrapErr("", err)
		}
		return u.get(f, elem, "", false)
	}
	return u.get(ir.Field{Node: root}, elem, "", false)
}

// PasteField restores the field called name of n into dst, reading only
// as much of a lazily opened document as the lookup needs.
func PasteField(n *ir.Node, name string, dst any, options ...Option) error {
	val := reflect.ValueOf(dst)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return &UnmarshalError{FieldPath: name, Message: "destination must be a non nil pointer", Err: ir.ErrType}
	}
	f, _, err := n.Consume(name, ir.ErrOnMiss)
	if err != nil {
		return wrapErr(name, err)
	}
	u := &unmapper{tree: n.Tree(), opts: makeOpts(options)}
	return u.get(f, val.Elem(), name, false)
}

// PasteFieldAt is PasteField for the field at index i.
func PasteFieldAt(n *ir.Node, i int, dst any, options ...Option) error {
	val := reflect.ValueOf(dst)
	path := indexPath("", i)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return &UnmarshalError{FieldPath: path, Message: "destination must be a non nil pointer", Err: ir.ErrType}
	}
	f, _, err := n.ConsumeAt(i, ir.ErrOnMiss)
	if err != nil {
		return wrapErr(path, err)
	}
	u := &unmapper{tree: n.Tree(), opts: makeOpts(options)}
	return u.get(f, val.Elem(), path, false)
}

func describe(f ir.Field) string {
	if f.IsNode() {
		return f.Node.Kind().String()
	}
	return f.Value.Type().String()
}

// emptyText reports whether f is the empty String that XML yields for an
// empty element.
func emptyText(f ir.Field) bool {
	return !f.IsNode() && f.Value.Type() == ir.StringType && f.Value.Size() == 0
}

// get restores f into the settable v.
func (u *unmapper) get(f ir.Field, v reflect.Value, path string, shared bool) error {
	typ := v.Type()
	if !f.IsNode() && f.Value.IsNull() {
		v.SetZero()
		return nil
	}
	switch typ.Kind() {
	case reflect.Interface:
		return u.getInterface(f, v, path, shared)
	case reflect.Pointer:
		if (shared || u.opts.share) && !hasMethods(typ) {
			return u.getShared(f, v, path)
		}
		if v.IsNil() {
			v.Set(reflect.New(typ.Elem()))
		}
		return u.get(f, v.Elem(), path, false)
	}
	if x, ok := methodOf[TreeUnmarshaler](v); ok {
		if err := x.UnmarshalTree(f); err != nil {
			return wrapErr(path, err)
		}
		return nil
	}
	if x, ok := methodOf[encoding.TextUnmarshaler](v); ok {
		if f.IsNode() {
			return typeErr(path, "expected text for %s, got %s", typ, f.Node.Kind())
		}
		text, err := f.Value.Bytes()
		if err != nil {
			return wrapErr(path, err)
		}
		if err := x.UnmarshalText(text); err != nil {
			return &UnmarshalError{FieldPath: path, Err: err}
		}
		return nil
	}

	switch typ.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		if typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array {
			if typ.Elem().Kind() == reflect.Uint8 && !f.IsNode() {
				return u.getBytes(f.Value, v, path)
			}
		}
		if !f.IsNode() {
			if emptyText(f) {
				return u.getEmpty(v)
			}
			return typeErr(path, "expected %s for %s, got %s", rootKindName(typ), typ, f.Value.Type())
		}
		return u.getScope(f.Node, v, path)
	}
	if f.IsNode() {
		return typeErr(path, "expected a value for %s, got %s", typ, f.Node.Kind())
	}
	x := f.Value
	switch typ.Kind() {
	case reflect.Bool:
		switch x.Type() {
		case ir.BoolType:
			b, _ := x.AsBool()
			v.SetBool(b)
		case ir.StringType:
			s, _ := x.Str()
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return typeErr(path, "cannot convert string %q to bool", s)
			}
			v.SetBool(b)
		default:
			return typeErr(path, "expected bool, got %s", x.Type())
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return setInt(v, x, path)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var i uint64
		if x.Type() == ir.StringType {
			s, _ := x.Str()
			var err error
			if i, err = strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil {
				return typeErr(path, "cannot convert string %q to %s", s, typ)
			}
		} else {
			var err error
			if i, err = x.Uint64(); err != nil {
				return wrapErr(path, err)
			}
		}
		if v.OverflowUint(i) {
			return typeErr(path, "value %d overflows %s", i, typ)
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		var d float64
		if x.Type() == ir.StringType {
			s, _ := x.Str()
			var err error
			if d, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return typeErr(path, "cannot convert string %q to %s", s, typ)
			}
		} else {
			var err error
			if d, err = x.Float64(); err != nil {
				return wrapErr(path, err)
			}
		}
		if v.OverflowFloat(d) {
			return typeErr(path, "value %g overflows %s", d, typ)
		}
		v.SetFloat(d)
	case reflect.String:
		b, err := x.Bytes()
		if err != nil {
			return wrapErr(path, err)
		}
		v.SetString(string(b))
	default:
		return typeErr(path, "unsupported type: %s", typ)
	}
	return nil
}

func setInt(v reflect.Value, x ir.Value, path string) error {
	var i int64
	if x.Type() == ir.StringType {
		s, _ := x.Str()
		var err error
		if i, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
			return typeErr(path, "cannot convert string %q to %s", s, v.Type())
		}
	} else {
		var err error
		if i, err = x.Int64(); err != nil {
			return wrapErr(path, err)
		}
	}
	if v.OverflowInt(i) {
		return typeErr(path, "value %d overflows %s", i, v.Type())
	}
	v.SetInt(i)
	return nil
}

func rootKindName(typ reflect.Type) string {
	if k, _ := rootKind(typ); k == ir.ObjectType {
		return "object"
	}
	return "array"
}

// getBytes restores Binary, or base64 text, into a byte slice or array.
func (u *unmapper) getBytes(x ir.Value, v reflect.Value, path string) error {
	var b []byte
	switch x.Type() {
	case ir.BinaryType:
		data, _ := x.Bytes()
		b = bytes.Clone(data)
	case ir.StringType:
		data, _ := x.Bytes()
		var err error
		if b, err = codec.DecodeBase64(nil, data); err != nil {
			return wrapErr(path, err)
		}
	default:
		return typeErr(path, "expected binary for %s, got %s", v.Type(), x.Type())
	}
	if v.Kind() == reflect.Array {
		if len(b) != v.Len() {
			return typeErr(path, "%d bytes for %s", len(b), v.Type())
		}
		reflect.Copy(v, reflect.ValueOf(b))
		return nil
	}
	if b == nil {
		b = []byte{}
	}
	v.SetBytes(b)
	return nil
}

// getEmpty restores an empty scope.
func (u *unmapper) getEmpty(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice:
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	case reflect.Map:
		v.Set(reflect.MakeMap(v.Type()))
	default:
		v.SetZero()
	}
	return nil
}

func (u *unmapper) getScope(n *ir.Node, v reflect.Value, path string) error {
	typ := v.Type()
	if err := n.Materialize(); err != nil {
		return wrapErr(path, err)
	}
	switch typ.Kind() {
	case reflect.Struct:
		if !n.IsObject() {
			return typeErr(path, "expected object for %s, got %s", typ, n.Kind())
		}
		si := getStructInfo(typ, u.opts.tag)
		for _, f := range n.Fields() {
			i, ok := si.byName[f.Name.String()]
			if !ok {
				continue
			}
			fi := &si.fields[i]
			if err := u.get(f, v.FieldByIndex(fi.index), fieldPath(path, fi.name), fi.shared); err != nil {
				return err
			}
		}

	case reflect.Slice:
		s := reflect.MakeSlice(typ, n.Len(), n.Len())
		for i, f := range n.Fields() {
			if err := u.get(f, s.Index(i), indexPath(path, i), false); err != nil {
				return err
			}
		}
		v.Set(s)

	case reflect.Array:
		if n.Len() > v.Len() {
			return typeErr(path, "%d elements for %s", n.Len(), typ)
		}
		v.SetZero()
		for i, f := range n.Fields() {
			if err := u.get(f, v.Index(i), indexPath(path, i), false); err != nil {
				return err
			}
		}

	case reflect.Map:
		if v.IsNil() {
			v.Set(reflect.MakeMap(typ))
		}
		seen := make(map[any]struct{}, n.Len())
		for i, f := range n.Fields() {
			key := reflect.New(typ.Key()).Elem()
			elem := reflect.New(typ.Elem()).Elem()
			var p string
			if typ.Key().Kind() == reflect.String {
				if !n.IsObject() {
					return typeErr(path, "expected object for %s, got %s", typ, n.Kind())
				}
				name := f.Name.String()
				p = fieldPath(path, name)
				key.SetString(name)
				if err := u.get(f, elem, p, false); err != nil {
					return err
				}
			} else {
				p = indexPath(path, i)
				if !f.IsNode() || !f.Node.IsObject() {
					return typeErr(p, "expected a key/value object for %s, got %s", typ, describe(f))
				}
				kf, _, err := f.Node.Consume("key", ir.ErrOnMiss)
				if err != nil {
					return wrapErr(p, err)
				}
				if err := u.get(kf, key, fieldPath(p, "key"), false); err != nil {
					return err
				}
				vf, _, err := f.Node.Consume("value", ir.ErrOnMiss)
				if err != nil {
					return wrapErr(p, err)
				}
				if err := u.get(vf, elem, fieldPath(p, "value"), false); err != nil {
					return err
				}
			}
			k := key.Interface()
			if _, dup := seen[k]; dup {
				return &UnmarshalError{FieldPath: p, Message: "duplicate map key", Err: ir.ErrLookup}
			}
			seen[k] = struct{}{}
			v.SetMapIndex(key, elem)
		}

	default:
		return typeErr(path, "unsupported type: %s", typ)
	}
	return wrapErr(path, u.tree.Err())
}

// getShared restores a pointer stored as {"#": ordinal, "v": payload}.
// Later occurrences of an ordinal yield the pointer restored first.
func (u *unmapper) getShared(f ir.Field, v reflect.Value, path string) error {
	if !f.IsNode() || !f.Node.IsObject() {
		return typeErr(path, "expected a shared reference for %s, got %s", v.Type(), describe(f))
	}
	n := f.Node
	of, _, err := n.Consume("#", ir.ErrOnMiss)
	if err != nil {
		return wrapErr(path, err)
	}
	if of.IsNode() {
		return typeErr(path, "shared ordinal is a %s", of.Node.Kind())
	}
	var ord int
	if err := setInt(reflect.ValueOf(&ord).Elem(), of.Value, fieldPath(path, "#")); err != nil {
		return err
	}
	if obj, ok := u.tree.Restored(ord); ok {
		p := reflect.ValueOf(obj)
		if p.Type() != v.Type() {
			return typeErr(path, "shared object %d is a %s, not %s", ord, p.Type(), v.Type())
		}
		v.Set(p)
		return nil
	}
	p := reflect.New(v.Type().Elem())
	if err := u.tree.Restore(ord, p.Interface()); err != nil {
		return wrapErr(path, err)
	}
	pf, _, err := n.Consume("v", ir.ErrOnMiss)
	if err != nil {
		return wrapErr(path, err)
	}
	if err := u.get(pf, p.Elem(), path, false); err != nil {
		return err
	}
	v.Set(p)
	return nil
}

// getInterface restores {"type": name, "value": payload} as the
// registered type. Empty interfaces also take any other field, as maps,
// slices and the Go type of each leaf.
func (u *unmapper) getInterface(f ir.Field, v reflect.Value, path string, shared bool) error {
	if rt, vf, ok, err := u.registered(f, path); err != nil {
		return err
	} else if ok {
		if !rt.AssignableTo(v.Type()) {
			return typeErr(path, "registered %s does not implement %s", rt, v.Type())
		}
		x := reflect.New(rt).Elem()
		if err := u.get(vf, x, fieldPath(path, "value"), shared); err != nil {
			return err
		}
		v.Set(x)
		return nil
	}
	if v.Type().NumMethod() > 0 {
		return typeErr(path, "cannot restore %s without a registered type", v.Type())
	}
	if !f.IsNode() {
		if x := leafValue(f.Value); x != nil {
			v.Set(reflect.ValueOf(x))
		} else {
			v.SetZero()
		}
		return nil
	}
	var x reflect.Value
	if f.Node.IsObject() {
		x = reflect.New(reflect.TypeFor[map[string]any]()).Elem()
	} else {
		x = reflect.New(reflect.TypeFor[[]any]()).Elem()
	}
	if err := u.getScope(f.Node, x, path); err != nil {
		return err
	}
	v.Set(x)
	return nil
}

// registered reports whether f is a registered interface value, and
// returns its type and payload.
func (u *unmapper) registered(f ir.Field, path string) (reflect.Type, ir.Field, bool, error) {
	if !f.IsNode() || !f.Node.IsObject() {
		return nil, ir.Field{}, false, nil
	}
	n := f.Node
	if err := n.Materialize(); err != nil {
		return nil, ir.Field{}, false, wrapErr(path, err)
	}
	if n.Len() != 2 {
		return nil, ir.Field{}, false, nil
	}
	tf, _, _ := n.FindAt(0, 0)
	vf, _, _ := n.FindAt(1, 0)
	if tf.Name.String() != "type" || vf.Name.String() != "value" || tf.IsNode() {
		return nil, ir.Field{}, false, nil
	}
	name, err := tf.Value.Str()
	if err != nil {
		return nil, ir.Field{}, false, nil
	}
	rt, ok := registeredType(name)
	if !ok {
		return nil, ir.Field{}, false, nil
	}
	return rt, vf, true, nil
}

// leafValue returns the Go value of the type matching x.
func leafValue(x ir.Value) any {
	switch x.Type() {
	case ir.BoolType:
		b, _ := x.AsBool()
		return b
	case ir.I8Type:
		i, _ := ir.Int[int8](x)
		return i
	case ir.I16Type:
		i, _ := ir.Int[int16](x)
		return i
	case ir.I32Type:
		i, _ := ir.Int[int32](x)
		return i
	case ir.I64Type:
		i, _ := x.Int64()
		return i
	case ir.UI8Type:
		i, _ := ir.Uint[uint8](x)
		return i
	case ir.UI16Type:
		i, _ := ir.Uint[uint16](x)
		return i
	case ir.UI32Type:
		i, _ := ir.Uint[uint32](x)
		return i
	case ir.UI64Type:
		i, _ := x.Uint64()
		return i
	case ir.FP32Type:
		f, _ := ir.Float[float32](x)
		return f
	case ir.FP64Type:
		f, _ := x.Float64()
		return f
	case ir.StringType:
		s, _ := x.Str()
		return s
	case ir.BinaryType:
		b, _ := x.Bytes()
		return bytes.Clone(b)
	}
	return nil
}

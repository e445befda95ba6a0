package gomap

import (
	"cmp"
	"encoding"
	"reflect"
	"slices"
	"strings"

	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/ir"
)

// TreeMarshaler is implemented by types that insert themselves into a
// document as the field name of n.
type TreeMarshaler interface {
	MarshalTree(n *ir.Node, name string) error
}

var (
	treeMarshalerType   = reflect.TypeFor[TreeMarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	treeUnmarshalerType = reflect.TypeFor[TreeUnmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// hasMethods reports whether values of typ are mapped by their own
// marshaling methods rather than by their kind.
func hasMethods(typ reflect.Type) bool {
	for _, t := range []reflect.Type{typ, reflect.PointerTo(typ)} {
		if t.Implements(treeMarshalerType) || t.Implements(textMarshalerType) ||
			t.Implements(treeUnmarshalerType) || t.Implements(textUnmarshalerType) {
			return true
		}
	}
	return false
}

// rootKind reports the kind of the root scope for values of typ, and
// whether such values are wrapped in a one element Array.
func rootKind(typ reflect.Type) (ir.Type, bool) {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if hasMethods(typ) {
		return ir.ArrayType, true
	}
	switch typ.Kind() {
	case reflect.Struct:
		return ir.ObjectType, false
	case reflect.Map:
		if typ.Key().Kind() == reflect.String {
			return ir.ObjectType, false
		}
		return ir.ArrayType, false
	case reflect.Slice, reflect.Array:
		return ir.ArrayType, typ.Elem().Kind() == reflect.Uint8
	case reflect.Interface:
		return ir.ObjectType, false
	}
	return ir.ArrayType, true
}

// methodOf returns v, or its address, as an I.
func methodOf[I any](v reflect.Value) (I, bool) {
	if v.CanInterface() {
		if x, ok := v.Interface().(I); ok {
			return x, true
		}
	}
	if v.CanAddr() && v.Addr().CanInterface() {
		x, ok := v.Addr().Interface().(I)
		return x, ok
	}
	var zero I
	return zero, false
}

type mapper struct {
	tree    *ir.Tree
	opts    *opts
	visited map[uintptr]string
}

// ToTree replaces the document of t with v. Structs and maps with string
// keys become Objects; slices, arrays and other maps become Arrays. Any
// other root value is wrapped in a one element Array. Pointers at the
// root are followed and never shared.
func ToTree(t *ir.Tree, v any, options ...Option) error {
	t.Reset()
	m := &mapper{tree: t, opts: makeOpts(options), visited: map[uintptr]string{}}
	if v == nil {
		t.SetRoot(ir.ArrayType).Insert("", ir.Null())
		return nil
	}
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return marshalErr("", ir.ErrType, "nil %s root", reflect.TypeOf(v))
		}
		m.visited[val.Pointer()] = "root"
		val = val.Elem()
	}
	if !val.CanAddr() {
		p := reflect.New(val.Type())
		p.Elem().Set(val)
		val = p.Elem()
	}
	kind, wrapped := rootKind(val.Type())
	root := t.SetRoot(kind)
	var err error
	if wrapped {
		err = m.put(root, "", val, "", false)
	} else {
		err = m.fill(root, val, "")
	}
	if err != nil {
		return err
	}
	if debug.Store() {
		debug.Logf("gomap store %T: %s\n", v, root)
	}
	return nil
}

// put inserts val into n as the field name.
func (m *mapper) put(n *ir.Node, name string, val reflect.Value, path string, shared bool) error {
	if !val.IsValid() {
		n.Insert(name, ir.Null())
		return nil
	}
	typ := val.Type()
	switch typ.Kind() {
	case reflect.Interface:
		if val.IsNil() {
			n.Insert(name, ir.Null())
			return nil
		}
		return m.putInterface(n, name, val, path, shared)
	case reflect.Pointer:
		if val.IsNil() {
			n.Insert(name, ir.Null())
			return nil
		}
		if (shared || m.opts.share) && !hasMethods(typ) {
			return m.putShared(n, name, val, path)
		}
		addr := val.Pointer()
		if prev, seen := m.visited[addr]; seen {
			return marshalErr(path, ir.ErrType, "circular reference detected: %s -> %s (previously seen at %s)", prev, path, prev)
		}
		m.visited[addr] = path
		err := m.put(n, name, val.Elem(), path, false)
		delete(m.visited, addr)
		return err
	case reflect.Map, reflect.Slice:
		if val.IsNil() {
			n.Insert(name, ir.Null())
			return nil
		}
	}
	if x, ok := methodOf[TreeMarshaler](val); ok {
		if err := x.MarshalTree(n, name); err != nil {
			return &MarshalError{FieldPath: path, Err: err}
		}
		return nil
	}
	if x, ok := methodOf[encoding.TextMarshaler](val); ok {
		text, err := x.MarshalText()
		if err != nil {
			return &MarshalError{FieldPath: path, Err: err}
		}
		n.Insert(name, ir.StringBytes(text))
		return nil
	}

	switch typ.Kind() {
	case reflect.Bool:
		n.Insert(name, ir.Bool(val.Bool()))
	case reflect.Int8:
		n.Insert(name, ir.Int8(int8(val.Int())))
	case reflect.Int16:
		n.Insert(name, ir.Int16(int16(val.Int())))
	case reflect.Int32:
		n.Insert(name, ir.Int32(int32(val.Int())))
	case reflect.Int, reflect.Int64:
		n.Insert(name, ir.Int64(val.Int()))
	case reflect.Uint8:
		n.Insert(name, ir.Uint8(uint8(val.Uint())))
	case reflect.Uint16:
		n.Insert(name, ir.Uint16(uint16(val.Uint())))
	case reflect.Uint32:
		n.Insert(name, ir.Uint32(uint32(val.Uint())))
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		n.Insert(name, ir.Uint64(val.Uint()))
	case reflect.Float32:
		n.Insert(name, ir.Float32(float32(val.Float())))
	case reflect.Float64:
		n.Insert(name, ir.Float64(val.Float()))
	case reflect.String:
		n.Insert(name, ir.String(val.String()))
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(b), val)
			n.Insert(name, ir.Binary(b))
			return nil
		}
		return m.fill(n.InsertNode(name, ir.ArrayType), val, path)
	case reflect.Map:
		kind := ir.ArrayType
		if typ.Key().Kind() == reflect.String {
			kind = ir.ObjectType
		}
		return m.fill(n.InsertNode(name, kind), val, path)
	case reflect.Struct:
		return m.fill(n.InsertNode(name, ir.ObjectType), val, path)
	default:
		return marshalErr(path, ir.ErrType, "unsupported type: %s", typ)
	}
	return nil
}

// fill inserts the contents of a struct, map, slice or array into n.
func (m *mapper) fill(n *ir.Node, val reflect.Value, path string) error {
	switch val.Kind() {
	case reflect.Struct:
		si := getStructInfo(val.Type(), m.opts.tag)
		for i := range si.fields {
			fi := &si.fields[i]
			fv := val.FieldByIndex(fi.index)
			if fi.omitEmpty && fv.IsZero() {
				continue
			}
			if err := m.put(n, fi.name, fv, fieldPath(path, fi.name), fi.shared); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.Len() > 0 {
			addr := val.Pointer()
			if prev, seen := m.visited[addr]; seen {
				return marshalErr(path, ir.ErrType, "circular reference detected: %s -> %s (previously seen at %s)", prev, path, prev)
			}
			m.visited[addr] = path
			defer delete(m.visited, addr)
		}
		for i := range val.Len() {
			if err := m.put(n, "", val.Index(i), indexPath(path, i), false); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		addr := val.Pointer()
		if prev, seen := m.visited[addr]; seen {
			return marshalErr(path, ir.ErrType, "circular reference detected: %s -> %s (previously seen at %s)", prev, path, prev)
		}
		m.visited[addr] = path
		defer delete(m.visited, addr)

		keys := val.MapKeys()
		sortKeys(keys)
		if n.IsObject() {
			for _, k := range keys {
				name := k.String()
				if err := m.put(n, name, val.MapIndex(k), fieldPath(path, name), false); err != nil {
					return err
				}
			}
			return nil
		}
		// other keys are stored as {"key": k, "value": v} pairs
		for i, k := range keys {
			kv := n.InsertNode("", ir.ObjectType)
			p := indexPath(path, i)
			if err := m.put(kv, "key", k, fieldPath(p, "key"), false); err != nil {
				return err
			}
			if err := m.put(kv, "value", val.MapIndex(k), fieldPath(p, "value"), false); err != nil {
				return err
			}
		}
		return nil
	}
	return marshalErr(path, ir.ErrType, "%s is not a scope", val.Type())
}

// putShared stores a pointer as {"#": ordinal, "v": payload}, with the
// payload only on its first occurrence in the document.
func (m *mapper) putShared(n *ir.Node, name string, val reflect.Value, path string) error {
	ord, first := m.tree.Share(ir.Ref{Ptr: val.UnsafePointer(), Type: val.Type()})
	obj := n.InsertNode(name, ir.ObjectType)
	obj.Insert("#", ir.Int64(int64(ord)))
	if !first {
		return nil
	}
	return m.put(obj, "v", val.Elem(), path, false)
}

// putInterface stores a registered dynamic type as {"type": name,
// "value": payload}. Values of unregistered types are only accepted in
// empty interfaces and are stored as themselves.
func (m *mapper) putInterface(n *ir.Node, name string, val reflect.Value, path string, shared bool) error {
	elem := val.Elem()
	if tn, ok := registeredName(elem.Type()); ok {
		obj := n.InsertNode(name, ir.ObjectType)
		obj.Insert("type", ir.String(tn))
		return m.put(obj, "value", elem, fieldPath(path, "value"), shared)
	}
	if val.Type().NumMethod() > 0 {
		return marshalErr(path, ir.ErrType, "%s in %s is not registered", elem.Type(), val.Type())
	}
	return m.put(n, name, elem, path, shared)
}

// sortKeys orders map keys of ordered kinds so that output is stable.
func sortKeys(keys []reflect.Value) {
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		switch a.Kind() {
		case reflect.String:
			return strings.Compare(a.String(), b.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		case reflect.Bool:
			switch {
			case a.Bool() == b.Bool():
				return 0
			case b.Bool():
				return -1
			}
			return 1
		}
		return 0
	})
}

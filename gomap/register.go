package gomap

import (
	"fmt"
	"reflect"
	"sync"
)

// registry maps the concrete types stored behind interfaces to and from
// their names. It is process wide and should be filled at init time.
var registry = struct {
	sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}{
	byName: map[string]reflect.Type{},
	byType: map[reflect.Type]string{},
}

// Register records the dynamic type of v under name. Interface values
// holding a registered type are stored as {"type": name, "value": ...}
// and restored to the same concrete type. Register panics when the name
// or the type is already registered with a different counterpart.
func Register(name string, v any) {
	typ := reflect.TypeOf(v)
	if typ == nil || name == "" {
		panic("gomap: Register needs a name and a non nil value")
	}
	registry.Lock()
	defer registry.Unlock()
	if t, ok := registry.byName[name]; ok && t != typ {
		panic(fmt.Sprintf("gomap: name %q registered for %s and %s", name, t, typ))
	}
	if n, ok := registry.byType[typ]; ok && n != name {
		panic(fmt.Sprintf("gomap: type %s registered as %q and %q", typ, n, name))
	}
	registry.byName[name] = typ
	registry.byType[typ] = name
}

func registeredName(typ reflect.Type) (string, bool) {
	registry.RLock()
	defer registry.RUnlock()
	name, ok := registry.byType[typ]
	return name, ok
}

func registeredType(name string) (reflect.Type, bool) {
	registry.RLock()
	defer registry.RUnlock()
	typ, ok := registry.byName[name]
	return typ, ok
}

package gomap

import (
	"reflect"
	"strings"
	"sync"
)

// fieldInfo describes how one struct field is stored.
type fieldInfo struct {
	name      string
	index     []int
	omitEmpty bool
	shared    bool
}

type structInfo struct {
	fields []fieldInfo
	byName map[string]int
}

type infoKey struct {
	typ reflect.Type
	tag string
}

var structInfos sync.Map // infoKey -> *structInfo

// parseTag splits a struct tag of the form "name,omitempty,shared".
func parseTag(tag string) (name string, omitEmpty, shared bool) {
	name, rest, _ := strings.Cut(tag, ",")
	for rest != "" {
		var opt string
		opt, rest, _ = strings.Cut(rest, ",")
		switch strings.TrimSpace(opt) {
		case "omitempty":
			omitEmpty = true
		case "shared":
			shared = true
		}
	}
	return strings.TrimSpace(name), omitEmpty, shared
}

func getStructInfo(typ reflect.Type, tag string) *structInfo {
	key := infoKey{typ, tag}
	if si, ok := structInfos.Load(key); ok {
		return si.(*structInfo)
	}
	si := &structInfo{byName: map[string]int{}}
	collectFields(si, typ, tag, nil)
	actual, _ := structInfos.LoadOrStore(key, si)
	return actual.(*structInfo)
}

// collectFields adds the exported fields of typ to si. Untagged embedded
// structs are flattened into their parent; a name defined closer to the
// outer struct wins.
func collectFields(si *structInfo, typ reflect.Type, tag string, index []int) {
	var embedded []reflect.StructField
	for i := range typ.NumField() {
		f := typ.Field(i)
		name, omitEmpty, shared := parseTag(f.Tag.Get(tag))
		if name == "-" && !strings.Contains(f.Tag.Get(tag), ",") {
			continue
		}
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			embedded = append(embedded, f)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if _, dup := si.byName[name]; dup {
			continue
		}
		si.byName[name] = len(si.fields)
		si.fields = append(si.fields, fieldInfo{
			name:      name,
			index:     append(append([]int(nil), index...), i),
			omitEmpty: omitEmpty,
			shared:    shared,
		})
	}
	for _, f := range embedded {
		collectFields(si, f.Type, tag, append(append([]int(nil), index...), f.Index...))
	}
}

package ir

import (
	"unsafe"

	"github.com/signadot/odoc/hashtab"
)

// Name is an interned field name with its precomputed hash. The zero Name
// is the empty name carried by array elements.
type Name struct {
	s string
	h uint64
}

// MakeName returns a Name for s without interning it.
func MakeName(s string) Name {
	if s == "" {
		return Name{}
	}
	return Name{s: s, h: hashtab.String(s)}
}

func (n Name) String() string { return n.s }
func (n Name) Hash() uint64   { return n.h }
func (n Name) IsEmpty() bool  { return n.s == "" }

func (n Name) is(o Name) bool {
	return n.h == o.h && n.s == o.s
}

// Intern returns the Name for b, copying b into the tree arena the first
// time it is seen.
func (t *Tree) Intern(b []byte) Name {
	if len(b) == 0 {
		return Name{}
	}
	h := hashtab.Bytes(b)
	if k, _, ok := t.names.GetHashed(h, func(s string) bool { return s == string(b) }); ok {
		return Name{s: *k, h: h}
	}
	s := t.arena.String(b)
	t.names.InsertHashed(h, s, struct{}{})
	return Name{s: s, h: h}
}

// InternString is Intern for a string.
func (t *Tree) InternString(s string) Name {
	if s == "" {
		return Name{}
	}
	h := hashtab.String(s)
	if k, _, ok := t.names.GetHashed(h, func(k string) bool { return k == s }); ok {
		return Name{s: *k, h: h}
	}
	s = t.arena.String(unsafe.Slice(unsafe.StringData(s), len(s)))
	t.names.InsertHashed(h, s, struct{}{})
	return Name{s: s, h: h}
}

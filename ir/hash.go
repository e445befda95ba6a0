package ir

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

const (
	hashK0 = 0x6f646f632d6b3030
	hashK1 = 0x6f646f632d6b3131
)

// Hash returns a fingerprint of the materialized node. Nodes that are
// Equal have the same fingerprint.
// It panics if n is nil.
func (n *Node) Hash() uint64 {
	if n == nil {
		panic("ir: Hash called on nil node")
	}
	_ = n.Materialize()
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(n.kind))
	for f := n.head; f != nil; f = f.next {
		buf = binary.LittleEndian.AppendUint64(buf, f.Name.h)
		if f.Node != nil {
			buf = append(buf, 'n')
			buf = binary.LittleEndian.AppendUint64(buf, f.Node.Hash())
			continue
		}
		buf = f.Value.appendCanonical(buf)
	}
	return siphash.Hash(hashK0, hashK1, buf)
}

// Hash returns a fingerprint of v consistent with Equal.
func (v Value) Hash() uint64 {
	return siphash.Hash(hashK0, hashK1, v.appendCanonical(nil))
}

func (v Value) appendCanonical(buf []byte) []byte {
	if v.typ.IsNumber() {
		c := v.canonical()
		buf = append(buf, c.kind)
		return binary.LittleEndian.AppendUint64(buf, c.bits)
	}
	buf = append(buf, byte(v.typ))
	switch v.typ {
	case StringType, BinaryType:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(v.data)))
		return append(buf, v.data...)
	}
	return binary.LittleEndian.AppendUint64(buf, v.word)
}

// Equal reports whether n and o have the same kind and pairwise Equal
// fields in the same order. Both are materialized.
func (n *Node) Equal(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil {
		return false
	}
	_ = n.Materialize()
	_ = o.Materialize()
	if n.kind != o.kind || n.n != o.n {
		return false
	}
	for f, g := n.head, o.head; f != nil; f, g = f.next, g.next {
		if f.Name.s != g.Name.s {
			return false
		}
		if (f.Node == nil) != (g.Node == nil) {
			return false
		}
		if f.Node != nil {
			if !f.Node.Equal(g.Node) {
				return false
			}
			continue
		}
		if !f.Value.Equal(g.Value) {
			return false
		}
	}
	return true
}

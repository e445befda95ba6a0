package ir

import "fmt"

// Lookup is a set of field lookup policies.
type Lookup uint8

const (
	// ByHash matches names by hash, then by bytes. It is implied by every
	// name lookup.
	ByHash Lookup = 0

	// ErrOnMiss makes a missing field an ErrLookup error.
	ErrOnMiss Lookup = 1 << iota
	// ErrOnDuplicate makes a second field of the same name an ErrLookup
	// error. It requires the whole node.
	ErrOnDuplicate
	// RemoveOnMatch removes the matched field from the node.
	RemoveOnMatch
)

func (l Lookup) has(f Lookup) bool { return l&f != 0 }

func (n *Node) take(prev, f *fieldRec, l Lookup) Field {
	res := f.Field
	if l.has(RemoveOnMatch) {
		n.unlink(prev, f)
	}
	return res
}

func (n *Node) missName(name string, l Lookup) (Field, bool, error) {
	if l.has(ErrOnMiss) {
		return Field{}, false, fmt.Errorf("%w: no field %q in %s %s", ErrLookup, name, n.kind, n.Path())
	}
	return Field{}, false, nil
}

func (n *Node) missIndex(i int, l Lookup) (Field, bool, error) {
	if l.has(ErrOnMiss) {
		return Field{}, false, fmt.Errorf("%w: index %d out of range [0,%d) in %s", ErrLookup, i, n.n, n.Path())
	}
	return Field{}, false, nil
}

// Find looks up name in the materialized node.
func (n *Node) Find(name string, l Lookup) (Field, bool, error) {
	if err := n.Materialize(); err != nil {
		return Field{}, false, err
	}
	key := MakeName(name)
	var (
		hitPrev, hit *fieldRec
		prev         *fieldRec
	)
	for f := n.head; f != nil; prev, f = f, f.next {
		if !f.Name.is(key) {
			continue
		}
		if hit == nil {
			hitPrev, hit = prev, f
			if !l.has(ErrOnDuplicate) {
				break
			}
			continue
		}
		return Field{}, false, fmt.Errorf("%w: duplicate field %q in %s", ErrLookup, name, n.Path())
	}
	if hit == nil {
		return n.missName(name, l)
	}
	return n.take(hitPrev, hit, l), true, nil
}

// FindAt looks up index i in the materialized node.
func (n *Node) FindAt(i int, l Lookup) (Field, bool, error) {
	if err := n.Materialize(); err != nil {
		return Field{}, false, err
	}
	prev, f := n.locate(i)
	if f == nil {
		return n.missIndex(i, l)
	}
	return n.take(prev, f, l), true, nil
}

// Consume looks up name, reading only as much input as needed to find it.
// With ErrOnDuplicate it behaves like Find.
func (n *Node) Consume(name string, l Lookup) (Field, bool, error) {
	if l.has(ErrOnDuplicate) {
		return n.Find(name, l)
	}
	key := MakeName(name)
	var prev *fieldRec
	f := n.head
	for {
		for ; f != nil; prev, f = f, f.next {
			if f.Name.is(key) {
				return n.take(prev, f, l), true, nil
			}
		}
		if n.state == Parsed {
			return n.missName(name, l)
		}
		if err := n.advance(); err != nil {
			return Field{}, false, err
		}
		if prev == nil {
			f = n.head
		} else {
			f = prev.next
		}
	}
}

// ConsumeAt looks up index i, reading only as much input as needed.
func (n *Node) ConsumeAt(i int, l Lookup) (Field, bool, error) {
	for n.n <= i && n.state != Parsed {
		if err := n.advance(); err != nil {
			return Field{}, false, err
		}
	}
	prev, f := n.locate(i)
	if f == nil {
		return n.missIndex(i, l)
	}
	return n.take(prev, f, l), true, nil
}

// ConsumeNext returns the field after the one returned by the previous
// call, reading it if needed. It reports false after the last field.
func (n *Node) ConsumeNext() (Field, bool, error) {
	f, ok, err := n.ConsumeAt(n.next, 0)
	if ok {
		n.next++
	}
	return f, ok, err
}

package ir

import (
	"fmt"
	"iter"
)

// State is the parse state of a Node.
type State uint8

const (
	// Unparsed nodes are open in the input and have no resident fields.
	Unparsed State = iota
	// Partial nodes have some resident fields and are still open.
	Partial
	// Parsed nodes are complete; no further input is read for them.
	Parsed
)

func (s State) String() string {
	switch s {
	case Unparsed:
		return "unparsed"
	case Partial:
		return "partial"
	case Parsed:
		return "parsed"
	}
	return "<unknown state>"
}

// Field is one entry of a Node: a name and either a child Node or a Value.
// Array elements have the empty name.
type Field struct {
	Name  Name
	Node  *Node
	Value Value
}

func (f Field) IsNode() bool { return f.Node != nil }

type fieldRec struct {
	Field
	next *fieldRec
}

// Node is a scope of a document, an Object or an Array, holding an ordered
// sequence of fields.
//
// Nodes of a lazily opened Tree pull fields from the input on demand.
// Lookups by name or index pull until the requested field is resident or
// the node is closed; Len, Find and the other whole-node operations
// materialize the node completely. Input errors are sticky: they are
// returned by the failing operation and by Tree.Err afterwards.
type Node struct {
	tree   *Tree
	kind   Type
	name   Name
	parent *Node
	state  State

	head, tail *fieldRec
	n          int

	// positional cursor
	at     *fieldRec
	atPrev *fieldRec
	atIdx  int
	next   int
}

func (n *Node) Tree() *Tree    { return n.tree }
func (n *Node) Kind() Type     { return n.kind }
func (n *Node) Name() Name     { return n.name }
func (n *Node) Parent() *Node  { return n.parent }
func (n *Node) State() State   { return n.state }
func (n *Node) IsObject() bool { return n.kind == ObjectType }
func (n *Node) IsArray() bool  { return n.kind == ArrayType }

// Resident returns the number of fields read so far, without reading.
func (n *Node) Resident() int { return n.n }

// Len materializes n and returns its field count.
func (n *Node) Len() int {
	_ = n.Materialize()
	return n.n
}

// Materialize reads the rest of n from the input.
func (n *Node) Materialize() error {
	for n.state != Parsed {
		if err := n.tree.pull(); err != nil {
			return err
		}
	}
	return n.tree.err
}

// advance reads until n gains a field or closes. Open descendants are
// completed on the way.
func (n *Node) advance() error {
	before := n.n
	for n.state != Parsed && n.n == before {
		if err := n.tree.pull(); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) link(f *fieldRec) {
	if n.tail == nil {
		n.head = f
	} else {
		n.tail.next = f
	}
	n.tail = f
	n.n++
	if n.state == Unparsed {
		n.state = Partial
	}
}

func (n *Node) unlink(prev, f *fieldRec) {
	if prev == nil {
		n.head = f.next
	} else {
		prev.next = f.next
	}
	if n.tail == f {
		n.tail = prev
	}
	n.n--
	n.at, n.atPrev = nil, nil
}

func (n *Node) fieldName(name Name) Name {
	if n.kind == ArrayType {
		return Name{}
	}
	return name
}

// Insert appends a value field. Names are ignored in arrays. String and
// binary payloads are copied into the tree.
func (n *Node) Insert(name string, v Value) {
	n.InsertName(n.tree.InternString(name), v)
}

// InsertName is Insert with an already interned name.
func (n *Node) InsertName(name Name, v Value) {
	if !v.typ.IsLeaf() {
		panic(fmt.Sprintf("ir: cannot insert %s as a value", v.typ))
	}
	_ = n.Materialize()
	f := n.tree.fields.New()
	f.Name = n.fieldName(name)
	f.Value = n.tree.own(v)
	n.link(f)
}

// InsertNode appends a child scope of the given kind and returns it.
func (n *Node) InsertNode(name string, kind Type) *Node {
	return n.InsertNodeName(n.tree.InternString(name), kind)
}

// InsertNodeName is InsertNode with an already interned name.
func (n *Node) InsertNodeName(name Name, kind Type) *Node {
	_ = n.Materialize()
	c := n.tree.newNode(kind, n.fieldName(name), n, Parsed)
	f := n.tree.fields.New()
	f.Name = c.name
	f.Node = c
	n.link(f)
	return c
}

// Fields iterates over the fields of n, reading them from the input as
// needed. Iteration stops early on an input error, which Tree.Err reports.
func (n *Node) Fields() iter.Seq2[int, Field] {
	return func(yield func(int, Field) bool) {
		for i := 0; ; i++ {
			f, ok, err := n.ConsumeAt(i, 0)
			if err != nil || !ok {
				return
			}
			if !yield(i, f) {
				return
			}
		}
	}
}

func (n *Node) locate(i int) (prev, f *fieldRec) {
	if i < 0 || i >= n.n {
		return nil, nil
	}
	j := 0
	f = n.head
	if n.at != nil && n.atIdx <= i {
		j, prev, f = n.atIdx, n.atPrev, n.at
	}
	for ; j < i; j++ {
		prev, f = f, f.next
	}
	n.at, n.atPrev, n.atIdx = f, prev, i
	return prev, f
}

// Node returns the child scope called name.
func (n *Node) Node(name string) (*Node, error) {
	f, _, err := n.Consume(name, ErrOnMiss)
	if err != nil {
		return nil, err
	}
	if f.Node == nil {
		return nil, fmt.Errorf("%w: field %q is a %s, not a scope", ErrType, name, f.Value.typ)
	}
	return f.Node, nil
}

// NodeAt returns the child scope at index i.
func (n *Node) NodeAt(i int) (*Node, error) {
	f, _, err := n.ConsumeAt(i, ErrOnMiss)
	if err != nil {
		return nil, err
	}
	if f.Node == nil {
		return nil, fmt.Errorf("%w: field %d is a %s, not a scope", ErrType, i, f.Value.typ)
	}
	return f.Node, nil
}

// Value returns the value field called name.
func (n *Node) Value(name string) (Value, error) {
	f, _, err := n.Consume(name, ErrOnMiss)
	if err != nil {
		return Value{}, err
	}
	if f.Node != nil {
		return Value{}, fmt.Errorf("%w: field %q is a %s, not a value", ErrType, name, f.Node.kind)
	}
	return f.Value, nil
}

// ValueAt returns the value field at index i.
func (n *Node) ValueAt(i int) (Value, error) {
	f, _, err := n.ConsumeAt(i, ErrOnMiss)
	if err != nil {
		return Value{}, err
	}
	if f.Node != nil {
		return Value{}, fmt.Errorf("%w: field %d is a %s, not a value", ErrType, i, f.Node.kind)
	}
	return f.Value, nil
}

package ir

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/signadot/odoc/arena"
	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/hashtab"
	"github.com/signadot/odoc/token"
)

// TreeOption configures a Tree.
type TreeOption func(*treeOpts)

type treeOpts struct {
	arena []arena.Option
}

// ArenaSegmentSize sets the first arena segment size of a Tree.
func ArenaSegmentSize(n int) TreeOption {
	return func(o *treeOpts) { o.arena = append(o.arena, arena.SegmentSize(n)) }
}

// ArenaMaxSegmentSize sets the arena segment growth ceiling of a Tree.
func ArenaMaxSegmentSize(n int) TreeOption {
	return func(o *treeOpts) { o.arena = append(o.arena, arena.MaxSegmentSize(n)) }
}

// Ref identifies a shared host object by address and type.
type Ref struct {
	Ptr  unsafe.Pointer
	Type reflect.Type
}

// Tree owns one document: its root Node, the arena and slabs holding its
// data, the name intern table and the shared object tables.
//
// Reset invalidates every Node, Value and Name the Tree produced. A Tree
// is not safe for concurrent use.
type Tree struct {
	arena  *arena.Arena
	nodes  arena.Slab[Node]
	fields arena.Slab[fieldRec]
	names  *hashtab.Table[string, struct{}]

	shared   *hashtab.Table[Ref, int]
	restored *hashtab.Table[uint64, any]

	root *Node

	// lazy input
	codec Codec
	src   *token.Source
	stack []*Node
	err   error
}

// NewTree creates an empty Tree.
func NewTree(opts ...TreeOption) *Tree {
	o := &treeOpts{}
	for _, opt := range opts {
		opt(o)
	}
	return &Tree{
		arena:    arena.New(o.arena...),
		names:    hashtab.New[string, struct{}](hashtab.String),
		shared:   hashtab.New[Ref, int](func(r Ref) uint64 { return hashtab.Pointer(r.Ptr) }),
		restored: hashtab.New[uint64, any](hashtab.Uint64),
	}
}

// Reset drops the document and every table, keeping allocated memory.
func (t *Tree) Reset() {
	t.arena.Reset()
	t.nodes.Reset()
	t.fields.Reset()
	t.names.Clear()
	t.shared.Clear()
	t.restored.Clear()
	t.root = nil
	t.codec = nil
	t.src = nil
	clear(t.stack)
	t.stack = t.stack[:0]
	t.err = nil
}

// Root returns the root Node, or nil.
func (t *Tree) Root() *Node {
	return t.root
}

// SetRoot replaces the root with an empty scope of the given kind.
func (t *Tree) SetRoot(kind Type) *Node {
	t.root = t.newNode(kind, Name{}, nil, Parsed)
	return t.root
}

// Err returns the input error that stopped lazy reading, if any.
func (t *Tree) Err() error {
	return t.err
}

func (t *Tree) newNode(kind Type, name Name, parent *Node, state State) *Node {
	if !kind.IsScope() {
		panic(fmt.Sprintf("ir: %s is not a scope", kind))
	}
	n := t.nodes.New()
	n.tree = t
	n.kind = kind
	n.name = name
	n.parent = parent
	n.state = state
	return n
}

// own copies the payload of v into the arena.
func (t *Tree) own(v Value) Value {
	if v.typ == StringType || v.typ == BinaryType {
		v.data = t.arena.Copy(v.data)
	}
	return v
}

// Open starts a lazy read of a document: only the root scope is read.
// Fields are read as Nodes are accessed.
func (t *Tree) Open(c Codec, src *token.Source) error {
	t.Reset()
	c.Reset()
	_, v, err := c.Read(src)
	if err != nil {
		return t.fail(err)
	}
	if !v.typ.IsScope() {
		return t.fail(fmt.Errorf("%w: document root is a %s, not a scope", ErrParse, v.typ))
	}
	t.root = t.newNode(v.typ, Name{}, nil, Unparsed)
	t.codec = c
	t.src = src
	t.stack = append(t.stack, t.root)
	return nil
}

// Finish reads the rest of a lazily opened document.
func (t *Tree) Finish() error {
	for len(t.stack) > 0 {
		if err := t.pull(); err != nil {
			return err
		}
	}
	return t.err
}

// Decode reads a whole document.
func (t *Tree) Decode(c Codec, src *token.Source) error {
	if err := t.Open(c, src); err != nil {
		return err
	}
	return t.Finish()
}

func (t *Tree) fail(err error) error {
	if t.err == nil {
		t.err = err
	}
	t.codec = nil
	t.src = nil
	return t.err
}

// pull reads one event into the innermost open node.
func (t *Tree) pull() error {
	if t.err != nil {
		return t.err
	}
	if len(t.stack) == 0 {
		return t.fail(fmt.Errorf("%w: read past the document end", errInternal))
	}
	top := t.stack[len(t.stack)-1]
	name, v, err := t.codec.Read(t.src)
	if err != nil {
		return t.fail(err)
	}
	if debug.Lazy() {
		debug.Logf("pull depth %d name %q %s\n", len(t.stack), name, v)
	}
	var nm Name
	if top.kind == ObjectType {
		nm = t.Intern(name)
	}
	switch v.typ {
	case EndType:
		top.state = Parsed
		t.stack[len(t.stack)-1] = nil
		t.stack = t.stack[:len(t.stack)-1]
		if len(t.stack) == 0 {
			t.codec = nil
			t.src = nil
		}
	case ObjectType, ArrayType:
		c := t.newNode(v.typ, nm, top, Unparsed)
		f := t.fields.New()
		f.Name = nm
		f.Node = c
		top.link(f)
		t.stack = append(t.stack, c)
	default:
		f := t.fields.New()
		f.Name = nm
		f.Value = t.own(v)
		top.link(f)
	}
	return nil
}

// Encode writes the document through c into s and flushes s. A lazily
// opened document is read completely first.
func (t *Tree) Encode(c Codec, s *token.Sink) error {
	if err := t.Finish(); err != nil {
		return err
	}
	if t.root == nil {
		return fmt.Errorf("%w: encode of an empty tree", errInternal)
	}
	if debug.Store() {
		debug.Logf("encode %s %s\n", c.Format(), t.root)
	}
	c.Reset()
	if err := t.encode(c, s, nil, t.root); err != nil {
		return err
	}
	return s.Flush()
}

func nameBytes(n Name) []byte {
	if n.s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(n.s), len(n.s))
}

func (t *Tree) encode(c Codec, s *token.Sink, name []byte, n *Node) error {
	if err := c.Write(name, Scope(n.kind), s); err != nil {
		return err
	}
	for f := n.head; f != nil; f = f.next {
		var err error
		if f.Node != nil {
			err = t.encode(c, s, nameBytes(f.Name), f.Node)
		} else {
			err = c.Write(nameBytes(f.Name), f.Value, s)
		}
		if err != nil {
			return err
		}
	}
	return c.Write(nil, End(), s)
}

// Share registers a shared object for storing. It returns the object's
// ordinal and whether this is its first occurrence.
func (t *Tree) Share(r Ref) (int, bool) {
	existed, ord := t.shared.Insert(r, t.shared.Len())
	return *ord, !existed
}

// Restored returns the object registered for a shared ordinal.
func (t *Tree) Restored(ord int) (any, bool) {
	p, ok := t.restored.Get(uint64(ord))
	if !ok {
		return nil, false
	}
	return *p, true
}

// Restore registers obj as the object for a shared ordinal. It fails when
// the ordinal is already registered.
func (t *Tree) Restore(ord int, obj any) error {
	if existed, _ := t.restored.Insert(uint64(ord), obj); existed {
		return fmt.Errorf("%w: shared ordinal %d restored twice", ErrLookup, ord)
	}
	return nil
}

// SharedTable and RestoredTable expose the identity tables.
func (t *Tree) SharedTable() *hashtab.Table[Ref, int]       { return t.shared }
func (t *Tree) RestoredTable() *hashtab.Table[uint64, any] { return t.restored }

// Stats describes the memory held by a Tree.
type Stats struct {
	Nodes  int
	Fields int
	Names  int
	Shared int
	Arena  arena.Stats
}

func (t *Tree) Stats() Stats {
	return Stats{
		Nodes:  t.nodes.Len(),
		Fields: t.fields.Len(),
		Names:  t.names.Len(),
		Shared: t.shared.Len() + t.restored.Len(),
		Arena:  t.arena.Stats(),
	}
}

package ir

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Path returns the location of n in its document, such as $.a[2].b.
func (n *Node) Path() string {
	if n.parent == nil {
		return "$"
	}
	p := n.parent
	if p.kind == ObjectType {
		return p.Path() + "." + pathString(n.name.s)
	}
	i := 0
	for f := p.head; f != nil && f.Node != n; f = f.next {
		i++
	}
	return p.Path() + "[" + strconv.Itoa(i) + "]"
}

type Path struct {
	Index *int
	Field *string
	Next  *Path
}

func (p *Path) String() string {
	buf := bytes.NewBuffer([]byte{'$'})
	for x := p; x != nil; x = x.Next {
		if x.Field != nil {
			buf.WriteString("." + pathString(*x.Field))
		}
		if x.Index != nil {
			fmt.Fprintf(buf, "[%d]", *x.Index)
		}
	}
	return buf.String()
}

func ParsePath(p string) (*Path, error) {
	if len(p) == 0 || p[0] != '$' {
		return nil, fmt.Errorf("path %q should start with '$'", p)
	}
	root := &Path{}
	if len(p) == 1 {
		return root, nil
	}
	err := parseFrag(p[1:], root)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func parseFrag(frag string, parent *Path) error {
	if len(frag) == 0 {
		return nil
	}
	switch frag[0] {
	case '.':
		field, rest, err := parseField(frag[1:])
		if err != nil {
			return err
		}
		parent.Field = &field
		if len(rest) == 0 {
			return nil
		}
		next := &Path{}
		err = parseFrag(rest, next)
		if err != nil {
			return err
		}
		parent.Next = next
		return nil
	case '[':
		i := strings.IndexByte(frag[1:], ']')
		if i == -1 {
			return fmt.Errorf("expected '[' <index> ']'")
		}
		index, err := parseIndex(frag[1 : i+1])
		if err != nil {
			return err
		}
		parent.Index = &index
		if len(frag) == i+2 {
			return nil
		}
		next := &Path{}
		err = parseFrag(frag[i+2:], next)
		if err != nil {
			return err
		}
		parent.Next = next
		return nil
	default:
		return fmt.Errorf("expected '.' or '['")
	}
}

func parseIndex(is string) (int, error) {
	u64, err := strconv.ParseUint(is, 10, 31)
	if err != nil {
		return 0, err
	}
	return int(u64), nil
}

func parseField(frag string) (field, rest string, err error) {
	if len(frag) == 0 {
		return "", "", fmt.Errorf("expected field at end of string")
	}
	if frag[0] != '\'' {
		i := strings.IndexAny(frag, ".[")
		if i == -1 {
			return frag, "", nil
		}
		return frag[:i], frag[i:], nil
	}
	escaped := false
	res := make([]byte, 0, len(frag))
	for i := 1; i < len(frag); i++ {
		c := frag[i]
		switch c {
		case '\\':
			escaped = true
		case '\'':
			if !escaped {
				return string(res), frag[i+1:], nil
			}
			fallthrough
		default:
			escaped = false
			res = append(res, c)
		}
	}
	return "", "", fmt.Errorf("end of string scanning for \"'\"")
}

// GetPath looks up a path relative to n, reading lazily opened input only
// as far as the path requires. The root path "$" yields n itself as the
// Node of the returned Field.
func (n *Node) GetPath(path string) (Field, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Field{}, err
	}
	res := Field{Name: n.name, Node: n}
	for ; p != nil; p = p.Next {
		if p.Field == nil && p.Index == nil {
			continue
		}
		if res.Node == nil {
			return Field{}, fmt.Errorf("%w: %s: cannot descend into a %s", ErrLookup, path, res.Value.typ)
		}
		cur := res.Node
		switch {
		case p.Index != nil:
			if cur.kind != ArrayType {
				return Field{}, fmt.Errorf("%w: expected array at %s, got %s", ErrLookup, cur.Path(), cur.kind)
			}
			res, _, err = cur.ConsumeAt(*p.Index, ErrOnMiss)
		default:
			if cur.kind != ObjectType {
				return Field{}, fmt.Errorf("%w: expected object at %s, got %s", ErrLookup, cur.Path(), cur.kind)
			}
			res, _, err = cur.Consume(*p.Field, ErrOnMiss)
		}
		if err != nil {
			return Field{}, err
		}
	}
	return res, nil
}

func pathString(f string) string {
	if f != "" && strings.IndexAny(f, "'.*$[]") == -1 {
		return f
	}
	return "'" + strings.Replace(f, "'", "\\'", -1) + "'"
}

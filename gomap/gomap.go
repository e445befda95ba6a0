// Package gomap maps Go values to documents and back.
//
// Values are stored by inserting them into an ir.Tree, which a codec then
// writes, and restored by pasting the fields of a read Tree into Go
// values:
//
//	b, err := gomap.Marshal(user, codec.NewBinary())
//	...
//	user, err := gomap.Unmarshal[User](b, codec.NewBinary())
//
// Structs map to Objects with one field per exported struct field, named
// by the odoc struct tag when present:
//
//	type User struct {
//	    Name    string `odoc:"name"`
//	    Email   string `odoc:"email,omitempty"`
//	    Manager *User  `odoc:"manager,shared"`
//	}
//
// Maps with string keys map to Objects and other maps to Arrays of
// {"key": k, "value": v} Objects. Slices and arrays map to Arrays, except
// byte slices which are Binary. Types implementing TreeMarshaler or
// encoding.TextMarshaler store themselves. Nil pointers, maps, slices and
// interfaces are Null, and Null restores the zero value.
//
// Shared pointers, from the "shared" tag option or SharePointers, are
// stored once as {"#": ordinal, "v": payload} and referenced by
// {"#": ordinal} afterwards, so restoring them yields one object, and
// cycles through them are allowed. Interface values of a type given to
// Register are stored as {"type": name, "value": payload}.
package gomap

import (
	"io"

	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// Marshal stores v as a document written by c.
func Marshal(v any, c ir.Codec, options ...Option) ([]byte, error) {
	s := token.NewBufferSink()
	if err := store(s, v, c, options); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// Store is Marshal writing to w.
func Store(w io.Writer, v any, c ir.Codec, options ...Option) error {
	return store(token.NewSink(w), v, c, options)
}

func store(s *token.Sink, v any, c ir.Codec, options []Option) error {
	t := ir.NewTree()
	if err := ToTree(t, v, options...); err != nil {
		return err
	}
	return t.Encode(c, s)
}

// Unmarshal restores a T from a document read by c.
func Unmarshal[T any](data []byte, c ir.Codec, options ...Option) (T, error) {
	return restore[T](token.NewSourceBytes(data), c, options)
}

// Restore is Unmarshal reading from r.
func Restore[T any](r io.Reader, c ir.Codec, options ...Option) (T, error) {
	return restore[T](token.NewSource(r), c, options)
}

func restore[T any](src *token.Source, c ir.Codec, options []Option) (T, error) {
	var zero, v T
	t := ir.NewTree()
	if err := t.Open(c, src); err != nil {
		return zero, err
	}
	if err := FromTree(t, &v, options...); err != nil {
		return zero, err
	}
	// the rest of the document must still be well formed
	if err := t.Finish(); err != nil {
		return zero, err
	}
	return v, nil
}

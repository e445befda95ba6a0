package ir

import (
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/token"
)

// Codec translates document events to and from one wire format.
//
// Events arrive and leave in depth first order: a scope opening Value
// (Object or Array) starts a scope, End closes the innermost one, and any
// other Value is a leaf. Names are empty for array elements and for the
// root.
type Codec interface {
	Format() format.Format
	Kind() format.Kind

	// Write appends the wire form of one event to s.
	Write(name []byte, v Value, s *token.Sink) error

	// Read returns the next event. The returned name and payload are only
	// valid until the next call.
	Read(src *token.Source) (name []byte, v Value, err error)

	// Reset clears per document state.
	Reset()
}

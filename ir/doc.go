// Package ir provides the document model shared by all odoc codecs.
//
// # Overview
//
// A [Tree] owns one document. Its root is a [Node], a scope that is either
// an Object (named fields) or an Array (unnamed fields). Each field holds
// either a child Node or a [Value] leaf. Field order is insertion order
// and survives every codec round trip.
//
// All tree memory comes from the Tree: byte payloads and names live in an
// arena, nodes and fields in typed slabs. Nothing is freed individually;
// [Tree.Reset] drops everything at once and invalidates every Node, Value
// and Name the Tree produced.
//
// # Names
//
// Field names are interned per Tree and carry a precomputed Murmur hash
// (see package hashtab). Lookups compare hashes before bytes.
//
// # Values
//
// Values are a tagged union over Null, Bool, signed and unsigned integers
// of 8 to 64 bits, 32 and 64 bit floats, String and Binary. Scalars are
// stored inline. The generic accessors [Int], [Uint] and [Float] convert
// with range checks and fail with [ErrType].
//
// # Codecs and lazy reading
//
// A [Codec] turns the tree into a flat stream of events and back. Writing
// is done by [Tree.Encode]. Reading is either eager, [Tree.Decode], or
// lazy, [Tree.Open]: a lazily opened Tree reads input only when a Node
// lookup needs it. Consume and ConsumeAt stop reading as soon as the
// requested field is resident, so random access and streaming interleave.
// A Node moves from Unparsed to Partial on its first field and to Parsed
// on its closing event, after which it never reads again.
//
// # Shared objects
//
// [Tree.Share] and [Tree.Restore] keep the per document identity tables
// used to store an object reachable through several pointers once and to
// restore it as one object.
package ir

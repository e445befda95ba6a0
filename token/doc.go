// Package token provides the buffered byte I/O used by odoc codecs.
//
// [Source] is an input cursor over either a memory block or an io.Reader.
// Codecs use it to peek, move and scan for multi-byte tokens, and to copy
// text while substituting escape sequences. Operations that run out of
// input call a caller supplied [OnBounds] callback so that each codec can
// report end of input in its own terms.
//
// [Sink] is the output counterpart. Besides plain and escaped writes it can
// [Sink.Reserve] a byte range whose content is only known later, returning
// a [Ticket] that is patched once the content is known. This lets codecs
// emit length or size prefixed containers in a single forward pass.
//
// Neither type is safe for concurrent use.
package token

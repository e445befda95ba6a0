// Package arena provides the allocators backing odoc document trees.
//
// Document trees are written once, read a few times and then dropped as a
// whole, so per-object allocation and bookkeeping are wasted work. [Arena]
// hands out byte blocks from growing segments (names, strings, binary
// payloads); [Slab] hands out typed records (nodes and fields).
//
// # Segments
//
// The first segment has [DefaultSegmentSize] bytes and each new segment
// doubles the previous capacity up to [DefaultMaxSegmentSize]. A request
// that exceeds the ceiling gets a segment of its own.
//
// # Reuse
//
// [Arena.Release] puts a block on a size ordered free list which later
// allocations search first. [Arena.Reset] drops all allocations at once and
// keeps the segments; it does not clear or finalize anything stored in
// them, so callers must not keep references to arena memory across a reset.
package arena

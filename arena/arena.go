package arena

import (
	"sort"
	"unsafe"

	"github.com/signadot/odoc/debug"
)

const (
	// DefaultSegmentSize is the capacity of the first segment.
	DefaultSegmentSize = 4 << 10
	// DefaultMaxSegmentSize is the ceiling for segment growth.
	DefaultMaxSegmentSize = 512 << 10

	// blocks smaller than this are not worth tracking in the free list
	minFreeBlock = 8
)

// Option configures an Arena.
type Option func(*Arena)

// SegmentSize sets the capacity of the first segment.
func SegmentSize(n int) Option {
	return func(a *Arena) {
		if n > 0 {
			a.initial = n
		}
	}
}

// MaxSegmentSize sets the ceiling up to which segment capacity doubles.
func MaxSegmentSize(n int) Option {
	return func(a *Arena) {
		if n > 0 {
			a.max = n
		}
	}
}

// Arena is a bump-pointer byte allocator.
//
// Memory is handed out from a sequence of segments. Released blocks go to a
// free list and are preferred by later allocations; nothing is ever handed
// back to the Go runtime until the Arena itself is dropped.
//
// An Arena is not safe for concurrent use.
type Arena struct {
	segs [][]byte
	cur  int // index of the segment being bumped
	off  int // bump offset within segs[cur]

	initial, max int
	next         int // capacity of the next segment to allocate

	free []block // sorted by len
	used int
}

type block []byte

// Stats reports arena usage.
type Stats struct {
	Segments int
	Reserved int // total segment capacity
	Used     int // bytes handed out and not released
	Free     int // bytes in the free list
}

// New creates an Arena.
func New(opts ...Option) *Arena {
	a := &Arena{
		initial: DefaultSegmentSize,
		max:     DefaultMaxSegmentSize,
	}
	for _, o := range opts {
		o(a)
	}
	if a.max < a.initial {
		a.max = a.initial
	}
	a.next = a.initial
	return a
}

// padding returns the number of bytes needed after seg[off] to reach
// an address aligned to align.
func padding(seg []byte, off, align int) int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(seg))) + uintptr(off)
	return int(-addr & uintptr(align-1))
}

// Alloc returns n bytes whose first byte is aligned to align, which must be
// a power of two (0 means 1). The returned slice has capacity n.
//
// Alloc does not zero the memory it returns when it comes from a released
// block or a segment reused after Reset.
func (a *Arena) Alloc(n, align int) []byte {
	if n <= 0 {
		return nil
	}
	if align <= 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		panic("arena: alignment must be a power of two")
	}
	if b, ok := a.fromFree(n, align); ok {
		a.used += n
		return b
	}
	for {
		if a.cur < len(a.segs) {
			seg := a.segs[a.cur]
			pad := padding(seg, a.off, align)
			if a.off+pad+n <= len(seg) {
				start := a.off + pad
				a.off = start + n
				a.used += n
				return seg[start : start+n : start+n]
			}
			if a.cur+1 < len(a.segs) {
				a.retire()
				a.cur++
				a.off = 0
				continue
			}
		}
		a.grow(n + align - 1)
	}
}

// retire puts the unused tail of the current segment in the free list.
func (a *Arena) retire() {
	if a.cur >= len(a.segs) {
		return
	}
	seg := a.segs[a.cur]
	if len(seg)-a.off >= minFreeBlock {
		a.insertFree(seg[a.off:len(seg):len(seg)])
	}
	a.off = len(seg)
}

func (a *Arena) grow(need int) {
	size := a.next
	if need > size {
		// a dedicated segment, growth schedule unaffected
		size = need
	} else if a.next < a.max {
		a.next *= 2
		if a.next > a.max {
			a.next = a.max
		}
	}
	if debug.Arena() {
		debug.Logf("arena: new segment %d bytes (%d segments)\n", size, len(a.segs)+1)
	}
	a.retire()
	a.segs = append(a.segs, make([]byte, size))
	a.cur = len(a.segs) - 1
	a.off = 0
}

func (a *Arena) fromFree(n, align int) ([]byte, bool) {
	i := sort.Search(len(a.free), func(i int) bool { return len(a.free[i]) >= n })
	for ; i < len(a.free); i++ {
		blk := a.free[i]
		pad := padding(blk, 0, align)
		if pad+n > len(blk) {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if pad >= minFreeBlock {
			a.insertFree(blk[:pad:pad])
		}
		if rest := len(blk) - pad - n; rest >= minFreeBlock {
			a.insertFree(blk[pad+n : len(blk) : len(blk)])
		}
		return blk[pad : pad+n : pad+n], true
	}
	return nil, false
}

func (a *Arena) insertFree(b []byte) {
	i := sort.Search(len(a.free), func(i int) bool { return len(a.free[i]) >= len(b) })
	a.free = append(a.free, nil)
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = b
}

// Release returns b, which must have been obtained from Alloc on this
// arena and not released already, to the free list.
func (a *Arena) Release(b []byte) {
	if cap(b) == 0 {
		return
	}
	b = b[:cap(b):cap(b)]
	a.used -= len(b)
	if len(b) < minFreeBlock {
		return
	}
	a.insertFree(b)
}

// Reset drops every allocation. Segments are kept and reused by later
// allocations; their contents are left as they are.
func (a *Arena) Reset() {
	if debug.Arena() {
		debug.Logf("arena: reset %d segments, %d bytes used\n", len(a.segs), a.used)
	}
	a.cur = 0
	a.off = 0
	a.used = 0
	clear(a.free)
	a.free = a.free[:0]
}

// Copy allocates len(b) bytes and copies b into them.
func (a *Arena) Copy(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	dst := a.Alloc(len(b), 1)
	copy(dst, b)
	return dst
}

// String copies b into the arena and returns it as a string sharing the
// arena memory. The string is only valid until the next Reset.
func (a *Arena) String(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	dst := a.Copy(b)
	return unsafe.String(unsafe.SliceData(dst), len(dst))
}

// Stats reports the current usage.
func (a *Arena) Stats() Stats {
	st := Stats{Segments: len(a.segs), Used: a.used}
	for _, s := range a.segs {
		st.Reserved += len(s)
	}
	for _, f := range a.free {
		st.Free += len(f)
	}
	return st
}

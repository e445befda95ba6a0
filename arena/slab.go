package arena

const (
	slabFirstChunk = 16
	slabMaxChunk   = 4096
)

// Slab hands out *T from chunked backing arrays.
//
// It is the typed counterpart of Arena for records holding Go pointers,
// which must stay visible to the garbage collector and so cannot live in
// byte segments. The zero value is ready to use.
type Slab[T any] struct {
	chunks [][]T
	cur    int
	off    int
	n      int
}

// New returns a pointer to a zeroed T.
func (s *Slab[T]) New() *T {
	for {
		if s.cur < len(s.chunks) {
			c := s.chunks[s.cur]
			if s.off < len(c) {
				p := &c[s.off]
				s.off++
				s.n++
				var zero T
				*p = zero
				return p
			}
			if s.cur+1 < len(s.chunks) {
				s.cur++
				s.off = 0
				continue
			}
		}
		size := slabFirstChunk
		if k := len(s.chunks); k > 0 {
			size = min(len(s.chunks[k-1])*2, slabMaxChunk)
		}
		s.chunks = append(s.chunks, make([]T, size))
		s.cur = len(s.chunks) - 1
		s.off = 0
	}
}

// Len returns the number of live records.
func (s *Slab[T]) Len() int {
	return s.n
}

// Reset makes every chunk available again. Pointers previously returned
// by New must not be used afterwards.
func (s *Slab[T]) Reset() {
	s.cur = 0
	s.off = 0
	s.n = 0
}

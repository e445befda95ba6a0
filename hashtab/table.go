package hashtab

import (
	"iter"
	"math/bits"

	"github.com/signadot/odoc/arena"
)

const (
	defaultCapacity   = 16
	defaultLoadFactor = 0.75
)

// Option configures a Table.
type Option func(*tableOpts)

type tableOpts struct {
	capacity int
	load     float64
}

// Capacity sets the initial bucket count, rounded up to a power of two.
func Capacity(n int) Option {
	return func(o *tableOpts) { o.capacity = n }
}

// LoadFactor sets the element/bucket ratio that triggers a resize.
func LoadFactor(f float64) Option {
	return func(o *tableOpts) {
		if f > 0 {
			o.load = f
		}
	}
}

type entry[K comparable, V any] struct {
	key  K
	val  V
	hash uint64
	next *entry[K, V]
}

// Table is an open chaining hash table.
//
// Entries are allocated from a slab and recycled through a free list, so
// pointers returned by Insert, Upsert and Get stay valid until the entry
// is removed or the table is cleared. Resizing relinks entries into the
// new bucket array without copying them.
//
// A Table is not safe for concurrent use.
type Table[K comparable, V any] struct {
	hash    func(K) uint64
	buckets []*entry[K, V]
	n       int
	load    float64
	grow    int // element count triggering the next resize

	store arena.Slab[entry[K, V]]
	free  *entry[K, V]
}

// New creates a Table using hash to hash keys.
func New[K comparable, V any](hash func(K) uint64, opts ...Option) *Table[K, V] {
	o := &tableOpts{capacity: defaultCapacity, load: defaultLoadFactor}
	for _, opt := range opts {
		opt(o)
	}
	t := &Table[K, V]{hash: hash, load: o.load}
	t.setBuckets(make([]*entry[K, V], pow2(o.capacity)))
	return t
}

func pow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func (t *Table[K, V]) setBuckets(b []*entry[K, V]) {
	t.buckets = b
	t.grow = int(float64(len(b)) * t.load)
	if t.grow < 1 {
		t.grow = 1
	}
}

// index folds the high half of h into the low half while the bucket
// count is small, so weak hashes with entropy only in the high bits
// still spread.
func (t *Table[K, V]) index(h uint64) int {
	n := uint64(len(t.buckets))
	if n < 1<<32 {
		h ^= h >> 32
	}
	return int(h & (n - 1))
}

func (t *Table[K, V]) alloc() *entry[K, V] {
	if e := t.free; e != nil {
		t.free = e.next
		e.next = nil
		return e
	}
	return t.store.New()
}

func (t *Table[K, V]) recycle(e *entry[K, V]) {
	*e = entry[K, V]{next: t.free}
	t.free = e
}

func (t *Table[K, V]) resize() {
	old := t.buckets
	t.setBuckets(make([]*entry[K, V], len(old)*2))
	for _, e := range old {
		for e != nil {
			next := e.next
			i := t.index(e.hash)
			e.next = t.buckets[i]
			t.buckets[i] = e
			e = next
		}
	}
}

// Len returns the number of entries.
func (t *Table[K, V]) Len() int {
	return t.n
}

// Capacity returns the bucket count.
func (t *Table[K, V]) Capacity() int {
	return len(t.buckets)
}

func (t *Table[K, V]) find(h uint64, k K) *entry[K, V] {
	for e := t.buckets[t.index(h)]; e != nil; e = e.next {
		if e.hash == h && e.key == k {
			return e
		}
	}
	return nil
}

// Get returns a pointer to the value stored under k.
func (t *Table[K, V]) Get(k K) (*V, bool) {
	e := t.find(t.hash(k), k)
	if e == nil {
		return nil, false
	}
	return &e.val, true
}

// GetHashed looks up an entry by a precomputed hash, using match to
// compare candidate keys. It lets callers probe with a representation of
// the key they have not materialized, such as a byte slice for a string
// key.
func (t *Table[K, V]) GetHashed(h uint64, match func(K) bool) (*K, *V, bool) {
	for e := t.buckets[t.index(h)]; e != nil; e = e.next {
		if e.hash == h && match(e.key) {
			return &e.key, &e.val, true
		}
	}
	return nil, nil, false
}

// Insert stores v under k unless k is present. It reports whether k
// existed and returns a pointer to the stored value, which is the old
// value when k existed.
func (t *Table[K, V]) Insert(k K, v V) (bool, *V) {
	return t.InsertHashed(t.hash(k), k, v)
}

// InsertHashed is Insert with a precomputed hash, which must equal
// the table hash of k.
func (t *Table[K, V]) InsertHashed(h uint64, k K, v V) (bool, *V) {
	if e := t.find(h, k); e != nil {
		return true, &e.val
	}
	return false, t.add(h, k, v)
}

func (t *Table[K, V]) add(h uint64, k K, v V) *V {
	if t.n+1 > t.grow {
		t.resize()
	}
	e := t.alloc()
	e.key, e.val, e.hash = k, v, h
	i := t.index(h)
	e.next = t.buckets[i]
	t.buckets[i] = e
	t.n++
	return &e.val
}

// Upsert stores v under k, replacing any existing value.
func (t *Table[K, V]) Upsert(k K, v V) *V {
	h := t.hash(k)
	if e := t.find(h, k); e != nil {
		e.val = v
		return &e.val
	}
	return t.add(h, k, v)
}

// Extract removes k and returns its value.
func (t *Table[K, V]) Extract(k K) (V, bool) {
	h := t.hash(k)
	i := t.index(h)
	var prev *entry[K, V]
	for e := t.buckets[i]; e != nil; e = e.next {
		if e.hash != h || e.key != k {
			prev = e
			continue
		}
		if prev == nil {
			t.buckets[i] = e.next
		} else {
			prev.next = e.next
		}
		v := e.val
		t.recycle(e)
		t.n--
		return v, true
	}
	var zero V
	return zero, false
}

// Remove deletes k, reporting whether it was present.
func (t *Table[K, V]) Remove(k K) bool {
	_, ok := t.Extract(k)
	return ok
}

// ForEach calls f for every entry in unspecified order.
func (t *Table[K, V]) ForEach(f func(K, *V)) {
	t.ForEachBreak(func(k K, v *V) bool {
		f(k, v)
		return true
	})
}

// ForEachBreak calls f for every entry until f returns false. It reports
// whether all entries were visited.
func (t *Table[K, V]) ForEachBreak(f func(K, *V) bool) bool {
	for _, e := range t.buckets {
		for ; e != nil; e = e.next {
			if !f(e.key, &e.val) {
				return false
			}
		}
	}
	return true
}

// RemoveIf deletes every entry for which pred returns true and returns
// the number of deleted entries.
func (t *Table[K, V]) RemoveIf(pred func(K, *V) bool) int {
	removed := 0
	for i := range t.buckets {
		var prev *entry[K, V]
		e := t.buckets[i]
		for e != nil {
			next := e.next
			if pred(e.key, &e.val) {
				if prev == nil {
					t.buckets[i] = next
				} else {
					prev.next = next
				}
				t.recycle(e)
				t.n--
				removed++
			} else {
				prev = e
			}
			e = next
		}
	}
	return removed
}

// All iterates over the entries in unspecified order.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		t.ForEachBreak(func(k K, v *V) bool {
			return yield(k, *v)
		})
	}
}

// Clear removes every entry and recycles all entry storage. The bucket
// array keeps its size.
func (t *Table[K, V]) Clear() {
	clear(t.buckets)
	t.store.Reset()
	t.free = nil
	t.n = 0
}

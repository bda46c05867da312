package rope

import (
	"errors"
	"sync/atomic"

	"github.com/zeebo/errs"
)

// Error is the class of errors returned by this package.
var Error = errs.Class("rope")

// ErrFull is returned by Put when the rope would have to grow past its maximum
// capacity.
var ErrFull = errors.New("rope at maximum capacity")

// Outcome reports what Delete did to a slot.
type Outcome uint8

const (
	// Vacated means the slot is free again and no one else can observe the
	// value it held.
	Vacated Outcome = iota

	// Deferred means some non-owner holds a claim on the slot. The slot is
	// marked done and stays occupied until a later Delete finds no claims.
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Vacated:
		return "vacated"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// slot holds one value. done is set while a deleted value waits for claims to
// drain; claims counts non-owners currently reading the value.
type slot[E any] struct {
	ptr    atomic.Pointer[E]
	done   atomic.Bool
	claims atomic.Int64
}

// chunk is a fixed capacity run of slots indexed by a tree.
type chunk[E any] struct {
	ord   int
	slots []slot[E]
	tree  *tree
	next  atomic.Pointer[chunk[E]]
}

func newChunk[E any](ord, capacity int) *chunk[E] {
	return &chunk[E]{
		ord:   ord,
		slots: make([]slot[E], capacity),
		tree:  newTree(capacity),
	}
}

// Ref names a slot in a rope. The zero Ref names no slot.
type Ref[E any] struct {
	c *chunk[E]
	i int
}

// Valid reports if the Ref names a slot.
func (r Ref[E]) Valid() bool { return r.c != nil }

// Chunk returns the position of the slot's chunk in the rope.
func (r Ref[E]) Chunk() int { return r.c.ord }

// Index returns the position of the slot within its chunk.
func (r Ref[E]) Index() int { return r.i }

func (r Ref[E]) slot() *slot[E] { return &r.c.slots[r.i] }

// before reports if r comes strictly before o in rope order.
func (r Ref[E]) before(o Ref[E]) bool {
	if r.c == o.c {
		return r.i < o.i
	}
	return r.c.ord < o.c.ord
}

// Rope is a growable bag of pointers owned by a single goroutine. The owner
// puts and deletes values without synchronization; any other goroutine may walk
// the rope and read values through the claim protocol of Iterator.Claim, which
// keeps the owner from vacating a slot while it is being read.
type Rope[E any] struct {
	first  *chunk[E]
	last   *chunk[E]
	cursor Ref[E] // first free slot, invalid when every slot is occupied
	max    int

	length   atomic.Int64
	capacity atomic.Int64
	growths  atomic.Int64

	shadow []Entry[E]
}

// New returns a rope whose first chunk holds capacity values. Every further
// chunk holds twice as many values as the one before it. If max is positive, the
// rope never grows past max total slots. capacity must be a power of two.
func New[E any](capacity, max int) *Rope[E] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("rope: capacity must be a positive power of two")
	}

	c := newChunk[E](0, capacity)
	r := &Rope[E]{
		first:  c,
		last:   c,
		cursor: Ref[E]{c: c},
		max:    max,
	}
	r.capacity.Store(int64(capacity))
	return r
}

// Len returns the number of occupied slots, including slots marked done. It is
// safe to call from any goroutine.
func (r *Rope[E]) Len() int { return int(r.length.Load()) }

// Cap returns the total number of slots. It is safe to call from any goroutine.
func (r *Rope[E]) Cap() int { return int(r.capacity.Load()) }

// Chunks returns the number of chunks in the rope.
func (r *Rope[E]) Chunks() int { return r.last.ord + 1 }

// Growths returns how many chunks were appended since creation.
func (r *Rope[E]) Growths() int { return int(r.growths.Load()) }

// Put stores e in the first free slot, growing the rope if none is left. It
// must only be called by the owner.
func (r *Rope[E]) Put(e *E) (Ref[E], error) {
	if e == nil {
		panic("rope: put of nil value")
	}

	if !r.cursor.Valid() {
		if err := r.grow(); err != nil {
			return Ref[E]{}, err
		}
	}

	ref := r.cursor
	ref.slot().ptr.Store(e)
	ref.c.tree.mark(ref.i, true)
	r.length.Add(1)

	r.cursor = r.nextFree(ref.c, ref.i+1)
	return ref, nil
}

// Room reports if a Put would succeed, either into a free slot or by growing
// within the maximum capacity.
func (r *Rope[E]) Room() bool {
	if r.cursor.Valid() || r.max <= 0 {
		return true
	}
	return r.Cap()+2*len(r.last.slots) <= r.max
}

// grow appends a chunk with double the capacity of the last one and points the
// cursor at its first slot.
func (r *Rope[E]) grow() error {
	size := 2 * len(r.last.slots)
	if r.max > 0 && r.Cap()+size > r.max {
		return Error.Wrap(ErrFull)
	}

	c := newChunk[E](r.last.ord+1, size)
	r.last.next.Store(c)
	r.last = c
	r.capacity.Add(int64(size))
	r.growths.Add(1)

	r.cursor = Ref[E]{c: c}
	return nil
}

// nextFree finds the first free slot at or after index from of chunk c.
func (r *Rope[E]) nextFree(c *chunk[E], from int) Ref[E] {
	for ; c != nil; c, from = c.next.Load(), 0 {
		if !c.tree.any(free) {
			continue
		}
		if i := c.tree.next(from, free); i >= 0 {
			return Ref[E]{c: c, i: i}
		}
	}
	return Ref[E]{}
}

// Delete removes the value at ref. If a non-owner holds a claim on the slot the
// value stays in place marked done and Deferred is returned; a later Delete of
// the same ref vacates it once the claims drain. It must only be called by the
// owner.
func (r *Rope[E]) Delete(ref Ref[E]) Outcome {
	s := ref.slot()

	if s.done.Load() {
		if s.claims.Load() != 0 {
			return Deferred
		}
		s.ptr.Store(nil)
		s.done.Store(false)
		r.vacate(ref)
		return Vacated
	}

	old := s.ptr.Swap(nil)
	if s.claims.Load() == 0 {
		r.vacate(ref)
		return Vacated
	}

	// done must be visible before the value is, so a claimer that sees the
	// value again also sees that it is gone.
	s.done.Store(true)
	s.ptr.Store(old)
	return Deferred
}

func (r *Rope[E]) vacate(ref Ref[E]) {
	ref.c.tree.mark(ref.i, false)
	r.length.Add(-1)

	if !r.cursor.Valid() || ref.before(r.cursor) {
		r.cursor = ref
	}
}

// Drain calls fn with every value in the rope and whether it is marked done,
// then empties the rope. It must only be called by the owner once no other
// goroutine can reach the rope, so outstanding claims are ignored.
func (r *Rope[E]) Drain(fn func(e *E, done bool)) {
	for c := r.first; c != nil; c = c.next.Load() {
		for i := c.tree.next(0, occupied); i >= 0; i = c.tree.next(i+1, occupied) {
			s := &c.slots[i]
			if e := s.ptr.Load(); e != nil && fn != nil {
				fn(e, s.done.Load())
			}
			s.ptr.Store(nil)
			s.done.Store(false)
			s.claims.Store(0)
		}
		c.tree.reset()
	}

	r.length.Store(0)
	r.cursor = Ref[E]{c: r.first}
}

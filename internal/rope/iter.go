package rope

// Iterator walks the occupied slots of a rope in order. The zero Iterator is
// exhausted; get one from Rope.Iter.
type Iterator[E any] struct {
	c       *chunk[E]
	i       int
	claimed bool
}

// Iter returns an iterator positioned before the first occupied slot. Any
// goroutine may iterate, but only the owner may use Value; others must use
// Claim and Release.
func (r *Rope[E]) Iter() Iterator[E] {
	return Iterator[E]{c: r.first, i: -1}
}

// Next advances to the next occupied slot and reports if there is one. A claim
// held on the current slot must be released before calling Next.
func (it *Iterator[E]) Next() bool {
	if it.claimed {
		panic("rope: iterator advanced while holding a claim")
	}
	for it.c != nil {
		if i := it.c.tree.next(it.i+1, occupied); i >= 0 {
			it.i = i
			return true
		}
		it.c, it.i = it.c.next.Load(), -1
	}
	return false
}

// Ref returns a reference to the current slot.
func (it *Iterator[E]) Ref() Ref[E] { return Ref[E]{c: it.c, i: it.i} }

// Value returns the current value and whether it is marked done. Only the owner
// of the rope may call Value.
func (it *Iterator[E]) Value() (*E, bool) {
	s := &it.c.slots[it.i]
	return s.ptr.Load(), s.done.Load()
}

// Claim returns the current value and prevents the owner from vacating its slot
// until Release is called. It returns nil, holding nothing, if the slot is empty,
// marked done, or changed while the claim was being taken.
func (it *Iterator[E]) Claim() *E {
	s := &it.c.slots[it.i]

	e := s.ptr.Load()
	if e == nil || s.done.Load() {
		return nil
	}

	s.claims.Add(1)
	if s.ptr.Load() == e && !s.done.Load() {
		it.claimed = true
		return e
	}
	s.claims.Add(-1)
	return nil
}

// Release drops the claim taken by Claim.
func (it *Iterator[E]) Release() {
	if !it.claimed {
		panic("rope: release without a claim")
	}
	it.c.slots[it.i].claims.Add(-1)
	it.claimed = false
}

package rope

import (
	"cmp"
	"slices"
	"unsafe"
)

// Entry is a live value of a rope together with the slot holding it.
type Entry[E any] struct {
	Value *E
	Ref   Ref[E]
}

func (e Entry[E]) addr() uintptr { return uintptr(unsafe.Pointer(e.Value)) }

// Snapshot is the set of live values of a rope sorted by address, so that
// membership of an arbitrary pointer is a binary search.
type Snapshot[E any] struct {
	Entries []Entry[E]
}

// Snapshot collects every value that is not marked done and sorts them. The
// backing array is reused between calls, so a snapshot is only valid until the
// next call. It must only be called by the owner.
func (r *Rope[E]) Snapshot() Snapshot[E] {
	entries := r.shadow[:0]
	for it := r.Iter(); it.Next(); {
		if e, done := it.Value(); e != nil && !done {
			entries = append(entries, Entry[E]{Value: e, Ref: it.Ref()})
		}
	}

	slices.SortFunc(entries, func(a, b Entry[E]) int {
		return cmp.Compare(a.addr(), b.addr())
	})

	r.shadow = entries
	return Snapshot[E]{Entries: entries}
}

// Find returns the index of e in the snapshot or -1.
func (s Snapshot[E]) Find(e *E) int {
	if e == nil {
		return -1
	}
	target := uintptr(unsafe.Pointer(e))
	i, ok := slices.BinarySearchFunc(s.Entries, target, func(en Entry[E], t uintptr) int {
		return cmp.Compare(en.addr(), t)
	})
	if !ok {
		return -1
	}
	return i
}

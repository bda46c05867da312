package reclaim

import (
	"math/bits"
	"sync/atomic"
)

// HazardSlots is the number of nodes a Context may protect at once.
const HazardSlots = 64

// hazards is the set of nodes a context has declared it is reading. Only the
// owner writes it; scans of every context read the slots.
type hazards[T any] struct {
	free  uint64 // bit set when the slot is unused; owner only
	slots [HazardSlots]atomic.Pointer[Node[T]]
}

func (h *hazards[T]) reset() {
	h.free = ^uint64(0)
	for i := range h.slots {
		h.slots[i].Store(nil)
	}
}

// claim takes the lowest free slot.
func (h *hazards[T]) claim() int {
	if h.free == 0 {
		panic("reclaim: all hazard slots of the context are in use")
	}
	i := bits.TrailingZeros64(h.free)
	h.free &^= 1 << uint(i)
	return i
}

func (h *hazards[T]) drop(i int) {
	h.slots[i].Store(nil)
	h.free |= 1 << uint(i)
}

// used returns the number of claimed slots.
func (h *hazards[T]) used() int { return HazardSlots - bits.OnesCount64(h.free) }

// Protect reads the node stored at loc and publishes it in a hazard slot of
// the context, retrying until the published value is still the one stored at
// loc. While it stays protected the node is never recycled. Protect returns nil
// and holds no slot if loc is nil. It panics if every hazard slot is in use.
func (c *Context[T]) Protect(loc *atomic.Pointer[Node[T]]) *Node[T] {
	c.checkOpen()

	i := c.haz.claim()
	slot := &c.haz.slots[i]

	n := loc.Load()
	for {
		slot.Store(n)
		m := loc.Load()
		if m == n {
			break
		}
		n = m
	}

	if n == nil {
		c.haz.drop(i)
	}
	return n
}

// hold protects n directly. It is only valid for nodes no other goroutine can
// have retired, such as a node fresh out of Alloc.
func (c *Context[T]) hold(n *Node[T]) {
	c.haz.slots[c.haz.claim()].Store(n)
}

// Unprotect removes n from the hazard slots of the context. It returns false
// if n was not protected.
func (c *Context[T]) Unprotect(n *Node[T]) bool {
	if n == nil {
		return false
	}
	for used := ^c.haz.free; used != 0; used &= used - 1 {
		i := bits.TrailingZeros64(used)
		if c.haz.slots[i].Load() == n {
			c.haz.drop(i)
			return true
		}
	}
	return false
}

// Protected returns the number of hazard slots in use.
func (c *Context[T]) Protected() int { return c.haz.used() }

// CompareAndSwap swaps the node stored at where from old to next. On success the
// reference count of next is incremented and that of old is decremented.
func CompareAndSwap[T any](where *atomic.Pointer[Node[T]], old, next *Node[T]) bool {
	if !where.CompareAndSwap(old, next) {
		return false
	}
	if next != nil {
		next.incRef()
	}
	if old != nil {
		old.decRef()
	}
	return true
}

// Store stores next at where with the same reference counting as
// CompareAndSwap. The caller must be the only writer of where.
func Store[T any](where *atomic.Pointer[Node[T]], next *Node[T]) {
	old := where.Swap(next)
	if next != nil {
		next.incRef()
	}
	if old != nil {
		old.decRef()
	}
}

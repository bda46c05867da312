package main

import (
	"sync/atomic"

	"github.com/zeebo/reclaim"
)

type item struct {
	next  atomic.Pointer[reclaim.Node[item]]
	value atomic.Uint64
}

// stack is a Treiber stack whose nodes are recycled by a Reclaimer.
type stack struct {
	head atomic.Pointer[reclaim.Node[item]]
}

func (s *stack) push(c *reclaim.Context[item], v uint64) {
	n := c.Alloc()
	n.Value().value.Store(v)

	for {
		top := c.Protect(&s.head)
		reclaim.Store(&n.Value().next, top)
		if reclaim.CompareAndSwap(&s.head, top, n) {
			c.Unprotect(top)
			c.Unprotect(n)
			return
		}
		c.Unprotect(top)
	}
}

func (s *stack) pop(c *reclaim.Context[item]) (uint64, bool, error) {
	for {
		top := c.Protect(&s.head)
		if top == nil {
			return 0, false, nil
		}

		next := c.Protect(&top.Value().next)
		if reclaim.CompareAndSwap(&s.head, top, next) {
			v := top.Value().value.Load()
			c.Unprotect(next)
			reclaim.Store(&top.Value().next, nil)
			return v, true, c.Free(top)
		}

		c.Unprotect(next)
		c.Unprotect(top)
	}
}

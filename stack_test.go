package reclaim

import "sync/atomic"

// elem is a node of a Treiber stack of ints.
type elem struct {
	next  atomic.Pointer[Node[elem]]
	value atomic.Int64
}

type stack struct {
	head atomic.Pointer[Node[elem]]
}

func (s *stack) push(c *Context[elem], v int64) {
	n := c.Alloc()
	n.Value().value.Store(v)

	for {
		top := c.Protect(&s.head)
		Store(&n.Value().next, top)
		if CompareAndSwap(&s.head, top, n) {
			c.Unprotect(top)
			c.Unprotect(n)
			return
		}
		c.Unprotect(top)
	}
}

// pop returns the popped value along with a node that must be Freed.
func (s *stack) pop(c *Context[elem]) (*Node[elem], int64, bool) {
	for {
		top := c.Protect(&s.head)
		if top == nil {
			return nil, 0, false
		}

		next := c.Protect(&top.Value().next)
		if CompareAndSwap(&s.head, top, next) {
			v := top.Value().value.Load()
			c.Unprotect(next)
			Store(&top.Value().next, nil)
			return top, v, true
		}

		c.Unprotect(next)
		c.Unprotect(top)
	}
}

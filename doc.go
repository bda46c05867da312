// Package reclaim provides a way to know when no goroutine can still be reading
// a node of a lock-free structure, so that the node can be reused.
//
// Consider a Treiber stack whose nodes are recycled. A naive pop might be:
//
//	func (s *Stack) Pop() *node {
//		for {
//			top := s.head.Load()
//			if top == nil {
//				return nil
//			}
//			if s.head.CompareAndSwap(top, top.next.Load()) {
//				return top
//			}
//		}
//	}
//
// If another goroutine pops top, recycles it and pushes it back between the
// Load of top.next and the CompareAndSwap, the swap succeeds with a stale next
// and the stack is corrupted. Using the types in this package the read of top
// is protected, and top is only recycled once no goroutine protects it and no
// link points at it:
//
//	type elem struct {
//		next  atomic.Pointer[reclaim.Node[elem]]
//		value int
//	}
//
//	func pop(c *reclaim.Context[elem], head *atomic.Pointer[reclaim.Node[elem]]) (int, bool) {
//		for {
//			top := c.Protect(head)
//			if top == nil {
//				return 0, false
//			}
//			next := c.Protect(&top.Value().next)
//			if reclaim.CompareAndSwap(head, top, next) {
//				value := top.Value().value
//				c.Unprotect(next)
//				reclaim.Store(&top.Value().next, nil)
//				_ = c.Free(top)
//				return value, true
//			}
//			c.Unprotect(next)
//			c.Unprotect(top)
//		}
//	}
//
// Each goroutine uses its own Context. Protect and Unprotect only touch the
// memory of the context. Free appends to a backlog owned by the context and,
// once the backlog fills past a threshold, scans the hazard slots of every
// context to find which freed nodes can be terminated. Nodes are counted as
// linked while some atomic.Pointer updated through CompareAndSwap or Store
// points at them.
package reclaim

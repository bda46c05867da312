package reclaim

import "sync"

// pool recycles the nodes of a Reclaimer. A node only enters the pool once no
// hazard slot and no link can reach it, and leaves it through Alloc.
type pool[T any] struct {
	p sync.Pool
}

// get returns a node with a zero value and a clear ancillary word. It may be
// reused from the pool.
func (p *pool[T]) get() *Node[T] {
	n, _ := p.p.Get().(*Node[T])
	if n == nil {
		return new(Node[T])
	}

	var zero T
	n.value = zero
	n.anc.Store(0)
	return n
}

// put places n into the pool. It is important to not perform any operations
// on the node after it has been put. Putting the same node twice without a get
// in between panics.
func (p *pool[T]) put(n *Node[T]) {
	for {
		old := n.anc.Load()
		if old&pooledBit != 0 {
			panic("reclaim: node recycled twice")
		}
		if n.anc.CompareAndSwap(old, old|pooledBit) {
			break
		}
	}
	p.p.Put(n)
}

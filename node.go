package reclaim

import "sync/atomic"

// The ancillary word of a node packs a reference count in its low bits with
// three flags in its high bits.
const (
	deletedBit = 1 << 63 // Free was called
	tracedBit  = 1 << 62 // seen unreferenced by a scan since last referenced
	pooledBit  = 1 << 61 // back in the recycling pool
	refMask    = pooledBit - 1
)

// Node is an allocation tracked by a Reclaimer. It owns a value of type T and
// the bookkeeping the Reclaimer needs to decide when the value is unreachable.
// Containers store *Node[T] in atomic.Pointer fields and update those fields
// with CompareAndSwap and Store.
type Node[T any] struct {
	anc   atomic.Uint64
	value T
}

// Value returns the payload of the node.
func (n *Node[T]) Value() *T { return &n.value }

// Refs returns the number of structural links currently pointing at n.
func (n *Node[T]) Refs() uint64 { return n.anc.Load() & refMask }

// Deleted reports if Free was called on n since it was allocated.
func (n *Node[T]) Deleted() bool { return n.anc.Load()&deletedBit != 0 }

func (n *Node[T]) incRef() {
	for {
		old := n.anc.Load()
		if n.anc.CompareAndSwap(old, (old+1)&^tracedBit) {
			return
		}
	}
}

func (n *Node[T]) decRef() {
	for {
		old := n.anc.Load()
		if old&refMask == 0 {
			panic("reclaim: reference count of node dropped below zero")
		}
		if n.anc.CompareAndSwap(old, old-1) {
			return
		}
	}
}

func (n *Node[T]) markDeleted() {
	for {
		old := n.anc.Load()
		if old&deletedBit != 0 {
			panic("reclaim: node freed twice")
		}
		if n.anc.CompareAndSwap(old, (old|deletedBit)&^tracedBit) {
			return
		}
	}
}

// trace sets the traced flag if n has no references.
func (n *Node[T]) trace() {
	for {
		old := n.anc.Load()
		if old&refMask != 0 || old&tracedBit != 0 {
			return
		}
		if n.anc.CompareAndSwap(old, old|tracedBit) {
			return
		}
	}
}

// reclaimable reports if n was freed, has no references and has not been
// referenced since it was last traced.
func (n *Node[T]) reclaimable() bool {
	anc := n.anc.Load()
	return anc&refMask == 0 && anc&deletedBit != 0 && anc&tracedBit != 0
}

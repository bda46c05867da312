package reclaim

import (
	"go.uber.org/zap"

	"github.com/zeebo/reclaim/internal/quiesce"
	"github.com/zeebo/reclaim/internal/rope"
)

// Context is the per goroutine state of a Reclaimer: the nodes it protects and
// the nodes it freed that are not reclaimed yet. A Context must not be used by
// more than one goroutine at a time. Other contexts read its hazard slots and
// its backlog concurrently while scanning.
type Context[T any] struct {
	r      *Reclaimer[T]
	handle int
	log    *zap.Logger

	// guarded by r.mu
	id    uint64
	keyed bool

	closed bool

	reader quiesce.Reader
	haz    hazards[T]
	rope   *rope.Rope[Node[T]]

	hazarded []bool // scratch space for sweep
}

func newContext[T any](r *Reclaimer[T], handle int) *Context[T] {
	c := &Context[T]{
		r:      r,
		handle: handle,
		log:    r.log.With(zap.Int("context", handle)),
		rope:   rope.New[Node[T]](r.cfg.InitialBacklog, r.cfg.MaxBacklog),
	}
	c.haz.reset()
	return c
}

// successor returns a fresh context for the handle of c, which must be closed,
// reusing its drained backlog.
func (c *Context[T]) successor() *Context[T] {
	n := &Context[T]{
		r:        c.r,
		handle:   c.handle,
		log:      c.log,
		rope:     c.rope,
		hazarded: c.hazarded[:0],
	}
	n.haz.reset()
	return n
}

func (c *Context[T]) checkOpen() {
	if c.closed {
		panic("reclaim: use of closed context")
	}
}

// Handle returns the registry handle of the context. Handles of closed contexts
// are reused.
func (c *Context[T]) Handle() int { return c.handle }

// Backlog returns how many freed nodes wait for reclamation in the context and
// how many the backlog can hold before it grows.
func (c *Context[T]) Backlog() (n, capacity int) { return c.rope.Len(), c.rope.Cap() }

// Alloc returns a node with a zero value. The node is protected by the context
// until it is Unprotected or Freed.
func (c *Context[T]) Alloc() *Node[T] {
	c.checkOpen()

	n := c.r.pool.get()
	c.hold(n)
	c.r.stats.allocs.Add(1)
	return n
}

// Free retires n, which must already be unlinked or about to be. Its Terminate
// callback runs once no context protects it and no link points at it. If the
// backlog is at its maximum and a scan can not make room, Free returns an
// error wrapping ErrBacklogFull and leaves n as it was.
func (c *Context[T]) Free(n *Node[T]) error {
	c.checkOpen()

	if !c.rope.Room() {
		c.Scan()
		if !c.rope.Room() {
			return Error.Wrap(ErrBacklogFull)
		}
	}

	c.Unprotect(n)
	n.markDeleted()
	if err := c.put(n); err != nil {
		// Room reported space, so Put can not fail.
		panic(err)
	}
	c.r.stats.frees.Add(1)

	c.relieve()
	return nil
}

// put adds n to the backlog.
func (c *Context[T]) put(n *Node[T]) error {
	before := c.rope.Growths()
	if _, err := c.rope.Put(n); err != nil {
		return err
	}
	if c.rope.Growths() != before {
		c.r.stats.ropeGrowths.Add(1)
		c.log.Debug("backlog grew",
			zap.Int("capacity", c.rope.Cap()),
			zap.Int("chunks", c.rope.Chunks()))
	}
	return nil
}

// ratio returns how full the backlog is.
func (c *Context[T]) ratio() float64 {
	return float64(c.rope.Len()) / float64(c.rope.Cap())
}

// relieve reclaims when the backlog passes the scan threshold. A local clean
// and scan come first. If the backlog stays over the threshold every context
// is cleaned before scanning again.
func (c *Context[T]) relieve() {
	threshold := c.r.cfg.ScanThreshold
	if c.ratio() < threshold {
		return
	}

	c.CleanLocal()
	c.Scan()
	if c.ratio() < threshold {
		return
	}

	c.log.Debug("backlog over threshold after scan, cleaning all contexts",
		zap.Int("backlog", c.rope.Len()),
		zap.Int("capacity", c.rope.Cap()))
	c.CleanAll()
	c.Scan()
}

// Close unregisters the context. Nodes still waiting in its backlog are handed
// to the remaining contexts. The context must not be used after Close, and
// every node it protects is unprotected.
func (c *Context[T]) Close() {
	if c.closed {
		return
	}
	c.closed = true

	c.r.unlink(c)
	c.r.domain.Increment().Wait(c.r.readers())

	// no scan can reach the context anymore, so claims on its backlog are gone.
	var orphans []*Node[T]
	released := 0
	c.rope.Drain(func(n *Node[T], done bool) {
		if done {
			c.r.release(n)
			released++
			return
		}
		orphans = append(orphans, n)
	})
	c.r.orphan(orphans)
	c.r.stats.orphaned.Add(uint64(len(orphans)))

	c.haz.reset()
	c.log.Debug("context closed",
		zap.Int("orphaned", len(orphans)),
		zap.Int("released", released))

	c.r.recycle(c)
}

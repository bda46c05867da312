package reclaim

import (
	"go.uber.org/zap"

	"github.com/zeebo/reclaim/internal/rope"
)

// Scan reclaims every node in the backlog of the context that is freed,
// unlinked and protected by no context. It runs on its own when the backlog
// fills up, but may be called at any time.
func (c *Context[T]) Scan() {
	c.checkOpen()
	c.r.stats.scans.Add(1)

	c.adopt()
	c.trace()
	c.complete()
	c.sweep()
}

// adopt moves nodes orphaned by closed contexts into the backlog, as many as
// fit.
func (c *Context[T]) adopt() {
	limit := 0
	if m := c.r.cfg.MaxBacklog; m > 0 {
		if limit = m - c.rope.Len(); limit <= 0 {
			return
		}
	}

	nodes := c.r.takeOrphans(limit)
	if len(nodes) == 0 {
		return
	}

	for i, n := range nodes {
		if !c.rope.Room() {
			c.r.orphan(nodes[i:])
			nodes = nodes[:i]
			break
		}
		if err := c.put(n); err != nil {
			panic(err)
		}
	}

	c.r.stats.adopted.Add(uint64(len(nodes)))
	c.log.Debug("adopted orphans", zap.Int("count", len(nodes)))
}

// trace flags every unreferenced node of the backlog. A node linked again
// between trace and sweep loses the flag and survives the sweep.
func (c *Context[T]) trace() {
	for it := c.rope.Iter(); it.Next(); {
		if n, done := it.Value(); n != nil && !done {
			n.trace()
		}
	}
}

// complete recycles the nodes that were terminated while another context was
// reading them, once that context is done.
func (c *Context[T]) complete() {
	for it := c.rope.Iter(); it.Next(); {
		n, done := it.Value()
		if !done {
			continue
		}
		if c.rope.Delete(it.Ref()) == rope.Vacated {
			c.r.release(n)
		}
	}
}

// sweep terminates every reclaimable node of the backlog that no hazard slot of
// any context points at.
func (c *Context[T]) sweep() {
	snap := c.rope.Snapshot()
	if len(snap.Entries) == 0 {
		return
	}

	hazarded := c.hazarded[:0]
	for range snap.Entries {
		hazarded = append(hazarded, false)
	}
	c.hazarded = hazarded

	tok := c.r.domain.Acquire(&c.reader)
	for _, o := range c.r.contexts() {
		for i := range o.haz.slots {
			if j := snap.Find(o.haz.slots[i].Load()); j >= 0 {
				hazarded[j] = true
			}
		}
	}
	tok.Release()

	for j, e := range snap.Entries {
		n := e.Value
		if hazarded[j] || !n.reclaimable() {
			continue
		}

		switch c.rope.Delete(e.Ref) {
		case rope.Vacated:
			c.r.terminate(n, false)
			c.r.release(n)
		case rope.Deferred:
			c.r.terminate(n, true)
		}
	}
}

package reclaim

// CleanLocal calls the CleanUp callback on every node waiting in the backlog of
// the context.
func (c *Context[T]) CleanLocal() {
	c.checkOpen()
	c.r.stats.localCleans.Add(1)

	for it := c.rope.Iter(); it.Next(); {
		if n, done := it.Value(); n != nil && !done {
			c.r.cfg.CleanUp(n)
		}
	}
}

// CleanAll calls the CleanUp callback on every node waiting in the backlog of
// every context. Nodes in other backlogs are claimed while the callback runs,
// which keeps their owner from recycling them.
func (c *Context[T]) CleanAll() {
	c.checkOpen()
	c.r.stats.globalCleans.Add(1)

	tok := c.r.domain.Acquire(&c.reader)
	defer tok.Release()

	for _, o := range c.r.contexts() {
		if o == c {
			for it := c.rope.Iter(); it.Next(); {
				if n, done := it.Value(); n != nil && !done {
					c.r.cfg.CleanUp(n)
				}
			}
			continue
		}

		for it := o.rope.Iter(); it.Next(); {
			if n := it.Claim(); n != nil {
				c.r.cfg.CleanUp(n)
				it.Release()
			}
		}
	}
}

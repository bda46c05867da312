package quiesce

import (
	"runtime"
	"sync/atomic"
)

// counter counts writers inside a grace period.
type counter struct {
	count atomic.Int32
}

// Acquire increments the counter and blocks Wait calls.
func (c *counter) Acquire() { c.count.Add(1) }

// Release decrements the counter and unblocks Wait if the counter is empty.
func (c *counter) Release() {
	if c.count.Add(-1) < 0 {
		panic("quiesce: counter released more than acquired")
	}
}

// Zero returns if the counter is not Acquired.
func (c *counter) Zero() bool { return c.count.Load() == 0 }

// Wait spins, yielding the processor, until the counter is zero.
func (c *counter) Wait() {
	for !c.Zero() {
		runtime.Gosched()
	}
}

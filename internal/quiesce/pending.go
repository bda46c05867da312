package quiesce

import "runtime"

// Pending represents a generation of the Domain that a writer has Incremented
// past. When a call to Wait returns, no reader tagged with an earlier
// generation is still inside its read section.
type Pending struct {
	d   *Domain
	gen uint64
}

// Gen returns the generation the Pending is associated to.
func (p Pending) Gen() uint64 { return p.gen }

// Wait blocks until every one of readers is either idle or tagged with a
// generation at least as new as the Pending, then until no other writer is
// still waiting. It must be called exactly once. It returns the generation the
// Pending is associated to.
//
// Wait only returns once readers leave their read sections and writers stop
// arriving: a steady stream of new writers keeps the count above zero, so a
// waiter spins until the stream pauses.
func (p Pending) Wait(readers []*Reader) uint64 {
	for _, r := range readers {
		if r == nil {
			continue
		}
		for r.reading.Load() && r.tag.Load() < p.gen {
			runtime.Gosched()
		}
	}

	// two writers retiring concurrently must not both believe they are alone:
	// drop out of the writer count, then wait for the others to drop out too.
	p.d.writers.Release()
	p.d.writers.Wait()

	return p.gen
}

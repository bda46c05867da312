package reclaim

import "sync/atomic"

// Stats is a point in time summary of the activity of a Reclaimer. Counters
// only grow; Contexts, Backlog and Orphans are gauges.
type Stats struct {
	Contexts int64 // registered contexts
	Backlog  int64 // freed nodes waiting in the backlogs of registered contexts
	Orphans  int64 // freed nodes waiting for a context to adopt them

	Allocs       uint64
	Frees        uint64
	Scans        uint64
	LocalCleans  uint64
	GlobalCleans uint64
	Terminated   uint64 // Terminate callbacks
	Deferred     uint64 // Terminate callbacks made while a node was claimed
	Released     uint64 // nodes returned to the pool
	Orphaned     uint64 // nodes handed off by closing contexts
	Adopted      uint64 // orphans taken in by a scan
	RopeGrowths  uint64 // chunks appended to backlogs

	Generation uint64 // quiescence generation
}

type stats struct {
	contexts atomic.Int64

	allocs       atomic.Uint64
	frees        atomic.Uint64
	scans        atomic.Uint64
	localCleans  atomic.Uint64
	globalCleans atomic.Uint64
	terminated   atomic.Uint64
	deferred     atomic.Uint64
	released     atomic.Uint64
	orphaned     atomic.Uint64
	adopted      atomic.Uint64
	ropeGrowths  atomic.Uint64
}

// Stats returns the current statistics of the Reclaimer. It is safe to call
// from any goroutine; the values are read individually and may be slightly
// inconsistent with each other.
func (r *Reclaimer[T]) Stats() Stats {
	var backlog int64
	for _, c := range r.contexts() {
		backlog += int64(c.rope.Len())
	}

	return Stats{
		Contexts: r.stats.contexts.Load(),
		Backlog:  backlog,
		Orphans:  r.orphaned.Load(),

		Allocs:       r.stats.allocs.Load(),
		Frees:        r.stats.frees.Load(),
		Scans:        r.stats.scans.Load(),
		LocalCleans:  r.stats.localCleans.Load(),
		GlobalCleans: r.stats.globalCleans.Load(),
		Terminated:   r.stats.terminated.Load(),
		Deferred:     r.stats.deferred.Load(),
		Released:     r.stats.released.Load(),
		Orphaned:     r.stats.orphaned.Load(),
		Adopted:      r.stats.adopted.Load(),
		RopeGrowths:  r.stats.ropeGrowths.Load(),

		Generation: r.domain.Gen(),
	}
}

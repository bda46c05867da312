package reclaim

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/zeebo/reclaim/internal/quiesce"
)

// Reclaimer coordinates the reclamation of nodes of type T across every
// context registered with it. Contexts are published through an immutable
// snapshot so scans walk them without locks; registering and closing contexts
// is serialized by a mutex. The handle of a closed context goes to a new
// context once every scan that could still see the old one has finished.
type Reclaimer[T any] struct {
	cfg Config[T]
	log *zap.Logger

	domain quiesce.Domain
	live   atomic.Pointer[[]*Context[T]]

	mu      sync.Mutex // serializes registry changes
	arena   []*Context[T]
	spare   []int // handles of closed contexts ready for reuse
	keyed   map[uint64]*Context[T]
	closing int // contexts unlinked but still handing off their backlog
	closed  bool

	orphanMu sync.Mutex
	orphans  []*Node[T]
	orphaned atomic.Int64

	pool  pool[T]
	stats stats
}

// New returns a Reclaimer for nodes of type T.
func New[T any](cfg Config[T]) (*Reclaimer[T], error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	r := &Reclaimer[T]{
		cfg:   cfg,
		log:   cfg.Log.Named("reclaim"),
		keyed: make(map[uint64]*Context[T]),
	}
	r.live.Store(new([]*Context[T]))
	return r, nil
}

// Size returns the size in bytes of the values of the nodes.
func (r *Reclaimer[T]) Size() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// Align returns the alignment in bytes of the values of the nodes.
func (r *Reclaimer[T]) Align() uintptr {
	var zero T
	return unsafe.Alignof(zero)
}

// NewContext registers and returns a new context. The context must only be
// used by one goroutine at a time and must be Closed when that goroutine is
// done with the Reclaimer.
func (r *Reclaimer[T]) NewContext() (*Context[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registerLocked()
}

// Context returns the context registered under id, registering a new one the
// first time id is seen. Closing the context forgets the id.
func (r *Reclaimer[T]) Context(id uint64) (*Context[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.keyed[id]; ok {
		return c, nil
	}

	c, err := r.registerLocked()
	if err != nil {
		return nil, err
	}
	c.id, c.keyed = id, true
	r.keyed[id] = c
	return c, nil
}

func (r *Reclaimer[T]) registerLocked() (*Context[T], error) {
	if r.closed {
		return nil, Error.Wrap(ErrClosed)
	}

	live := *r.live.Load()
	if r.cfg.MaxContexts > 0 && len(live) >= r.cfg.MaxContexts {
		return nil, Error.Wrap(ErrTooManyContexts)
	}

	var c *Context[T]
	if n := len(r.spare); n > 0 {
		// the closed context stays closed for whoever still holds it; only
		// its handle and its drained backlog move on.
		c = r.arena[r.spare[n-1]].successor()
		r.arena[c.handle] = c
		r.spare = r.spare[:n-1]
	} else {
		c = newContext(r, len(r.arena))
		r.arena = append(r.arena, c)
	}

	next := make([]*Context[T], 0, len(live)+1)
	next = append(next, live...)
	next = append(next, c)
	r.live.Store(&next)

	r.stats.contexts.Add(1)
	c.log.Debug("context registered", zap.Int("live", len(next)))
	return c, nil
}

// unlink removes c from the published snapshot. Scans that loaded an earlier
// snapshot may still be looking at c.
func (r *Reclaimer[T]) unlink(c *Context[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := *r.live.Load()
	next := make([]*Context[T], 0, len(live))
	for _, o := range live {
		if o != c {
			next = append(next, o)
		}
	}
	r.live.Store(&next)

	if c.keyed {
		delete(r.keyed, c.id)
		c.keyed = false
	}
	r.closing++
	r.stats.contexts.Add(-1)
}

// recycle makes the handle of a retired context available to NewContext once
// it handed off its backlog.
func (r *Reclaimer[T]) recycle(c *Context[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closing--
	r.spare = append(r.spare, c.handle)
}

// contexts returns the current snapshot of registered contexts. Callers that
// read anything owned by the contexts must hold a quiesce Token.
func (r *Reclaimer[T]) contexts() []*Context[T] { return *r.live.Load() }

// readers returns the quiescence readers of every registered context.
func (r *Reclaimer[T]) readers() []*quiesce.Reader {
	live := r.contexts()
	out := make([]*quiesce.Reader, len(live))
	for i, c := range live {
		out[i] = &c.reader
	}
	return out
}

// orphan hands nodes retired by a closed context to whichever context scans
// next.
func (r *Reclaimer[T]) orphan(nodes []*Node[T]) {
	if len(nodes) == 0 {
		return
	}

	r.orphanMu.Lock()
	r.orphans = append(r.orphans, nodes...)
	r.orphanMu.Unlock()

	r.orphaned.Add(int64(len(nodes)))
}

// takeOrphans removes and returns up to limit orphaned nodes. A limit <= 0
// takes all of them.
func (r *Reclaimer[T]) takeOrphans(limit int) []*Node[T] {
	if r.orphaned.Load() == 0 {
		return nil
	}

	r.orphanMu.Lock()
	defer r.orphanMu.Unlock()

	n := len(r.orphans)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Node[T], n)
	copy(out, r.orphans[len(r.orphans)-n:])
	r.orphans = r.orphans[:len(r.orphans)-n]

	r.orphaned.Add(-int64(n))
	return out
}

// terminate runs the Terminate callback for n.
func (r *Reclaimer[T]) terminate(n *Node[T], concurrent bool) {
	r.cfg.Terminate(n, concurrent)
	if concurrent {
		r.stats.deferred.Add(1)
	}
	r.stats.terminated.Add(1)
}

// release recycles n. It must only be called once n is terminated and no claim
// on it is outstanding.
func (r *Reclaimer[T]) release(n *Node[T]) {
	r.pool.put(n)
	r.stats.released.Add(1)
}

// Close releases the Reclaimer. Every context must have been Closed before,
// and every call to Context.Close must have returned.
// Nodes orphaned by closed contexts that were never reclaimed are terminated
// and recycled, since no context remains to protect them.
func (r *Reclaimer[T]) Close() {
	r.mu.Lock()
	if live := len(r.contexts()); live > 0 || r.closing > 0 {
		r.mu.Unlock()
		panic("reclaim: Close called with registered contexts")
	}
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	orphans := r.takeOrphans(0)
	for _, n := range orphans {
		if refs := n.Refs(); refs > 0 {
			r.log.Warn("terminating node that is still linked", zap.Uint64("refs", refs))
		}
		r.terminate(n, false)
		r.release(n)
	}
	r.log.Debug("reclaimer closed", zap.Int("orphans", len(orphans)))
}

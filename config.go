package reclaim

import "go.uber.org/zap"

const (
	// DefaultInitialBacklog is the capacity of a context's first backlog
	// chunk when Config.InitialBacklog is zero.
	DefaultInitialBacklog = 64

	// DefaultScanThreshold is the backlog fill ratio at which Free starts
	// reclaiming when Config.ScanThreshold is zero.
	DefaultScanThreshold = 0.75
)

// Config configures a Reclaimer. Only Terminate is required; every other
// field has a usable zero value.
type Config[T any] struct {
	// Terminate is called exactly once for every freed node once the node is
	// unreachable. It is the place to release resources the value owns. When
	// concurrent is true some other context is still reading the node, and the
	// Reclaimer recycles it later on its own; Terminate must not keep it.
	Terminate func(n *Node[T], concurrent bool)

	// CleanUp is called on freed nodes that are still pending, possibly many
	// times per node and from any context. It must not release anything.
	CleanUp func(n *Node[T])

	// InitialBacklog is the capacity of the first chunk of every context's
	// backlog. It must be a power of two.
	InitialBacklog int

	// MaxBacklog bounds the capacity of every context's backlog. Zero means
	// unbounded.
	MaxBacklog int

	// MaxContexts bounds the number of registered contexts. Zero means
	// unbounded.
	MaxContexts int

	// ScanThreshold is the fill ratio of a backlog, in (0, 1], at which Free
	// runs a scan.
	ScanThreshold float64

	// Log receives debug events about contexts and backlog pressure.
	Log *zap.Logger
}

func (c Config[T]) normalize() (Config[T], error) {
	if c.Terminate == nil {
		return c, Error.New("a Terminate callback is required")
	}
	if c.CleanUp == nil {
		c.CleanUp = func(*Node[T]) {}
	}

	if c.InitialBacklog == 0 {
		c.InitialBacklog = DefaultInitialBacklog
	}
	if c.InitialBacklog < 0 || c.InitialBacklog&(c.InitialBacklog-1) != 0 {
		return c, Error.New("initial backlog %d is not a power of two", c.InitialBacklog)
	}
	if c.MaxBacklog < 0 || (c.MaxBacklog > 0 && c.MaxBacklog < c.InitialBacklog) {
		return c, Error.New("max backlog %d is smaller than the initial backlog %d",
			c.MaxBacklog, c.InitialBacklog)
	}
	if c.MaxContexts < 0 {
		return c, Error.New("max contexts %d is negative", c.MaxContexts)
	}

	if c.ScanThreshold == 0 {
		c.ScanThreshold = DefaultScanThreshold
	}
	if c.ScanThreshold < 0 || c.ScanThreshold > 1 {
		return c, Error.New("scan threshold %v is outside of (0, 1]", c.ScanThreshold)
	}

	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	return c, nil
}

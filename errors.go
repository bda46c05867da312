package reclaim

import (
	"errors"

	"github.com/zeebo/errs"
)

// Error is the class of errors returned by this package.
var Error = errs.Class("reclaim")

var (
	// ErrBacklogFull is returned by Free when the context's backlog is at its
	// configured maximum and a scan could not make room.
	ErrBacklogFull = errors.New("backlog full")

	// ErrTooManyContexts is returned when registering a context would exceed
	// the configured maximum.
	ErrTooManyContexts = errors.New("too many contexts")

	// ErrClosed is returned when registering a context with a closed
	// Reclaimer.
	ErrClosed = errors.New("reclaimer closed")
)

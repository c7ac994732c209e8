package env

import "errors"

// Configuration errors. They fail the call before anything is dispatched
// and leave the pool usable.
var (
	ErrInvalidRenderMode = errors.New("invalid render mode")
	ErrInvalidConfig     = errors.New("invalid environment config")
	ErrSeedCount         = errors.New("custom seed count does not match instance count")
	ErrActionCount       = errors.New("action count does not match instance count")
	ErrAttentionCount    = errors.New("attention count does not match instance count")
)

var (
	// ErrNotStarted is returned by Step and VisualizeAttention before the first Reset.
	ErrNotStarted = errors.New("environment has no instances: call Reset first")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("environment is closed")

	// ErrBusy is returned when a command is dispatched to a worker that
	// has not finished its previous one.
	ErrBusy = errors.New("worker already has a command in flight")
)

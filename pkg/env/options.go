package env

import (
	"github.com/entrhq/wobenv/pkg/logging"
	"github.com/entrhq/wobenv/pkg/types"
)

// ResetOptions are the optional per-call settings of Reset.
type ResetOptions struct {
	// CustomSeeds gives one seed per worker, in pool order. Its length
	// must equal the instance count.
	CustomSeeds []int64

	// DataMode is applied to every worker and takes effect this episode.
	DataMode *string

	// RecordScreenshots is applied to every worker immediately.
	RecordScreenshots *bool
}

// Seed returns a pointer to s, for the seed argument of Reset.
func Seed(s int64) *int64 {
	return &s
}

// WithDataMode returns options that switch the data mode.
func WithDataMode(mode string) *ResetOptions {
	return &ResetOptions{DataMode: &mode}
}

// WithCustomSeeds returns options carrying one seed per worker.
func WithCustomSeeds(seeds ...int64) *ResetOptions {
	return &ResetOptions{CustomSeeds: seeds}
}

// ResetInfo is the auxiliary info of Reset. It is currently always empty.
type ResetInfo map[string]any

// StepInfo is the auxiliary info of Step.
type StepInfo struct {
	// N holds one entry per worker: the task metadata and step timing,
	// or an empty map if the worker failed before writing it.
	N []map[string]any

	// Died is the pool-wide crash signal after this step. A crashed
	// worker otherwise looks like one whose episode ended with the
	// penalty reward.
	Died bool
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger replaces the package logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Environment) {
		e.log = l
	}
}

// WithRecordScreenshots sets the initial screenshot recording flag.
func WithRecordScreenshots(record bool) Option {
	return func(e *Environment) {
		e.recordScreenshots = record
	}
}

// Worker is one task session driven by the pool. Every method except the
// two setters runs on the worker's own goroutine, one at a time. The
// setters are called only while the worker is idle.
type Worker interface {
	// Start opens the session. A Start error fails the hard reset.
	Start() error

	// Reset begins a new episode. A nil seed lets the task pick one.
	Reset(seed *int64) (*types.State, error)

	// Step performs action (nil observes only) and reports the outcome.
	Step(action *types.Action) (types.StepResult, error)

	// VisualizeAttention renders grid over the task area. A nil grid is
	// a no-op and an empty non-nil grid clears the overlay.
	VisualizeAttention(grid types.Attention) error

	Close() error

	SetDataMode(mode string)
	SetRecordScreenshots(record bool)
}

// WorkerFactory creates the worker at index. It should not open the
// session; Start does that on the worker's goroutine.
type WorkerFactory func(index int, cfg Config) (Worker, error)

package env

import (
	"errors"
	"fmt"

	"github.com/entrhq/wobenv/pkg/logging"
	"github.com/entrhq/wobenv/pkg/types"
)

// DefaultPenalty is the reward a worker's slot holds if it fails to report
// a step result.
const DefaultPenalty = -1.0

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("pool")
	if err != nil {
		debugLog.Warnf("Failed to initialize pool logger, using stderr fallback: %v", err)
	}
}

// Environment steps a fixed pool of workers in lockstep.
type Environment struct {
	cfg     Config
	factory WorkerFactory
	log     *logging.Logger

	handles []*handle
	state   poolState
	died    bool

	recordScreenshots bool

	actionSpace      ActionSpace
	observationSpace ObservationSpace
}

// New validates cfg and returns an Environment with no workers. Workers
// are created by the first Reset.
func New(cfg Config, factory WorkerFactory, opts ...Option) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: worker factory is required", ErrInvalidConfig)
	}

	e := &Environment{
		cfg:              cfg,
		factory:          factory,
		log:              debugLog,
		state:            stateUninitialized,
		actionSpace:      ActionSpace{NumInstances: cfg.NumInstances},
		observationSpace: ObservationSpace{NumInstances: cfg.NumInstances},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns a copy of the environment's configuration.
func (e *Environment) Config() Config {
	return e.cfg
}

// NumInstances returns the pool size.
func (e *Environment) NumInstances() int {
	return e.cfg.NumInstances
}

// ActionSpace describes the batch Step expects.
func (e *Environment) ActionSpace() ActionSpace {
	return e.actionSpace
}

// ObservationSpace describes the batch Reset and Step return.
func (e *Environment) ObservationSpace() ObservationSpace {
	return e.observationSpace
}

// Died reports whether any worker had died at the most recent barrier.
func (e *Environment) Died() bool {
	return e.died
}

// Render is a no-op: the browser windows are the rendering in human mode.
func (e *Environment) Render() error {
	return nil
}

// dispatch sends one command to every worker, in pool order, without
// waiting for any of them.
func (e *Environment) dispatch(name string, fn func(i int, w Worker) error) error {
	var errs []error
	for i, h := range e.handles {
		if err := h.call(name, func(w Worker) error { return fn(i, w) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// barrier waits for every dispatched command, then recomputes the died
// signal from the workers' flags.
func (e *Environment) barrier() {
	for _, h := range e.handles {
		h.wait()
	}
	e.died = false
	for _, h := range e.handles {
		if h.hasDied() {
			e.died = true
			break
		}
	}
	e.state = afterBarrier(e.died)
}

// shutdown closes every worker and stops its goroutine.
func (e *Environment) shutdown() {
	if len(e.handles) == 0 {
		return
	}
	if err := e.dispatch("close", func(_ int, w Worker) error { return w.Close() }); err != nil {
		e.log.Errorf("Failed to dispatch close: %v", err)
	}
	for _, h := range e.handles {
		h.wait()
		if h.hasDied() {
			e.log.Warnf("Instance %d did not close cleanly", h.index)
		}
		h.stop()
	}
	e.handles = nil
}

// hardReset closes every existing worker and starts a fresh pool.
// Indices are preserved: worker i is always created by factory(i, ...).
func (e *Environment) hardReset() error {
	e.shutdown()

	handles := make([]*handle, 0, e.cfg.NumInstances)
	for i := 0; i < e.cfg.NumInstances; i++ {
		e.log.Infof("Starting instance %d", i)
		w, err := e.factory(i, e.cfg)
		if err != nil {
			e.handles = handles
			e.shutdown()
			e.state = stateUninitialized
			e.died = false
			return fmt.Errorf("failed to create instance %d: %w", i, err)
		}
		w.SetRecordScreenshots(e.recordScreenshots)
		handles = append(handles, newHandle(i, w, e.log))
	}
	e.handles = handles

	startErrs := make([]error, len(handles))
	if err := e.dispatch("start", func(i int, w Worker) error {
		startErrs[i] = w.Start()
		return startErrs[i]
	}); err != nil {
		return err
	}
	e.barrier()

	var errs []error
	for i, err := range startErrs {
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("instance %d: %w", i, err))
		case handles[i].hasDied():
			errs = append(errs, fmt.Errorf("instance %d: died during start", i))
		}
	}
	if len(errs) > 0 {
		e.shutdown()
		e.state = stateUninitialized
		e.died = false
		return fmt.Errorf("failed to start instances: %w", errors.Join(errs...))
	}
	return nil
}

// seeds resolves the per-worker seed sequence.
func (e *Environment) seeds(seed *int64, custom []int64) ([]*int64, error) {
	n := e.cfg.NumInstances
	seeds := make([]*int64, n)
	if custom == nil {
		for i := range seeds {
			seeds[i] = seed
		}
		return seeds, nil
	}
	if len(custom) != n {
		return nil, fmt.Errorf("%w: got %d seeds for %d instances", ErrSeedCount, len(custom), n)
	}
	for i := range custom {
		seeds[i] = &custom[i]
	}
	return seeds, nil
}

// Reset starts a new episode on every worker and returns one state per
// worker. If the pool has no workers yet, or any worker has died, every
// worker is closed and recreated first.
//
// seed is given to every worker unless opts.CustomSeeds is set.
func (e *Environment) Reset(seed *int64, opts *ResetOptions) ([]*types.State, ResetInfo, error) {
	if e.state == stateClosed {
		return nil, nil, ErrClosed
	}
	if opts == nil {
		opts = &ResetOptions{}
	}
	seeds, err := e.seeds(seed, opts.CustomSeeds)
	if err != nil {
		return nil, nil, err
	}

	if e.state.needsHardReset() {
		e.log.Warnf("Hard-resetting instances (state: %s)", e.state)
		if err := e.hardReset(); err != nil {
			return nil, nil, err
		}
	}

	if opts.DataMode != nil {
		e.SetDataMode(*opts.DataMode)
	}
	if opts.RecordScreenshots != nil {
		e.SetRecordScreenshots(*opts.RecordScreenshots)
	}

	// Slot i is written only by worker i.
	states := make([]*types.State, len(e.handles))
	if err := e.dispatch("reset", func(i int, w Worker) error {
		state, err := w.Reset(seeds[i])
		if err != nil {
			return err
		}
		states[i] = state
		return nil
	}); err != nil {
		return nil, nil, err
	}
	e.barrier()
	if e.died {
		e.log.Warnf("Instance died during reset")
	}
	return states, ResetInfo{}, nil
}

// Step applies actions[i] to worker i and returns the batched results.
// A nil action lets the worker observe without acting.
//
// Slots start at DefaultPenalty, terminated and not truncated, so a
// worker that dies mid-step reads as a failed episode end. StepInfo.Died
// tells the two apart.
func (e *Environment) Step(actions []*types.Action) ([]*types.State, []float64, []bool, []bool, StepInfo, error) {
	switch e.state {
	case stateClosed:
		return nil, nil, nil, nil, StepInfo{}, ErrClosed
	case stateUninitialized:
		return nil, nil, nil, nil, StepInfo{}, ErrNotStarted
	}
	n := len(e.handles)
	if len(actions) != n {
		return nil, nil, nil, nil, StepInfo{}, fmt.Errorf("%w: got %d actions for %d instances", ErrActionCount, len(actions), n)
	}

	states := make([]*types.State, n)
	rewards := make([]float64, n)
	terminated := make([]bool, n)
	truncated := make([]bool, n)
	info := StepInfo{N: make([]map[string]any, n)}
	for i := 0; i < n; i++ {
		rewards[i] = DefaultPenalty
		terminated[i] = true
		info.N[i] = map[string]any{}
	}

	if err := e.dispatch("step", func(i int, w Worker) error {
		result, err := w.Step(actions[i])
		if err != nil {
			return err
		}
		states[i] = result.State
		rewards[i] = result.Reward
		terminated[i] = result.Done
		if result.Info != nil {
			info.N[i] = result.Info
		}
		return nil
	}); err != nil {
		return nil, nil, nil, nil, StepInfo{}, err
	}
	e.barrier()
	info.Died = e.died
	return states, rewards, terminated, truncated, info, nil
}

// SetDataMode sets the data mode of every worker and of workers created by
// later hard resets. It takes effect from the next episode.
func (e *Environment) SetDataMode(mode string) {
	e.cfg.DataMode = mode
	for _, h := range e.handles {
		h.worker.SetDataMode(mode)
	}
}

// SetRecordScreenshots toggles screenshot capture on every worker.
func (e *Environment) SetRecordScreenshots(record bool) {
	e.recordScreenshots = record
	for _, h := range e.handles {
		h.worker.SetRecordScreenshots(record)
	}
}

// VisualizeAttention sends attentions[i] to worker i. See types.Attention
// for the nil and empty cases.
func (e *Environment) VisualizeAttention(attentions []types.Attention) error {
	switch e.state {
	case stateClosed:
		return ErrClosed
	case stateUninitialized:
		return ErrNotStarted
	}
	if len(attentions) != len(e.handles) {
		return fmt.Errorf("%w: got %d grids for %d instances", ErrAttentionCount, len(attentions), len(e.handles))
	}
	if err := e.dispatch("visualize_attention", func(i int, w Worker) error {
		return w.VisualizeAttention(attentions[i])
	}); err != nil {
		return err
	}
	e.barrier()
	return nil
}

// Close closes every worker and waits for all of them. The Environment
// cannot be used afterwards. Close is idempotent.
func (e *Environment) Close() error {
	if e.state == stateClosed {
		return nil
	}
	e.shutdown()
	e.state = stateClosed
	return nil
}

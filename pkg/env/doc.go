// Package env runs a fixed pool of task-page workers as one vectorized
// reinforcement-learning environment.
//
// # Architecture
//
// An Environment owns N workers, each wrapped in a handle that runs the
// worker's commands on a dedicated goroutine:
//
//  1. Dispatch: the Environment sends one command per worker, in pool order
//  2. Execute: workers run their commands concurrently with each other
//  3. Barrier: the Environment waits until every command has finished
//  4. Aggregate: per-worker results are collected into batched slices
//
// Every public operation returns only after its barrier, so commands from two
// calls never overlap and each worker has at most one command in flight.
//
// # Crash Recovery
//
// A command that returns an error or panics marks its worker as died. The
// failure never crosses the barrier: Step leaves the worker's slots at their
// defaults (penalty reward, terminated) and Died reports true. The next Reset
// performs a hard reset, closing every worker and starting a fresh set with
// the same indices, before starting the episode.
//
// # Example Usage
//
//	e, err := env.New(env.Config{Task: "click-test", NumInstances: 4, Headless: true},
//	    instance.NewFactory())
//	states, _, err := e.Reset(env.Seed(0), nil)
//	actions := e.ActionSpace().Sample(rng, states)
//	states, rewards, terminated, truncated, info, err := e.Step(actions)
//	defer e.Close()
//
// An Environment is not safe for concurrent use: callers issue one
// operation at a time.
package env

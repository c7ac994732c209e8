package env

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/entrhq/wobenv/pkg/logging"
)

// command is one unit of work run on a worker's goroutine.
type command struct {
	name string
	fn   func(Worker) error
}

// handle owns one worker and the goroutine its commands run on.
//
// The died flag is written only by that goroutine and read by the pool
// after wait returns, so the pool never observes it mid-command.
type handle struct {
	index  int
	worker Worker
	log    *logging.Logger

	cmds    chan command
	done    chan struct{}
	pending sync.WaitGroup
	busy    atomic.Bool
	died    atomic.Bool
	stopped bool
}

func newHandle(index int, worker Worker, log *logging.Logger) *handle {
	h := &handle{
		index:  index,
		worker: worker,
		log:    log,
		cmds:   make(chan command, 1),
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *handle) loop() {
	defer close(h.done)
	for cmd := range h.cmds {
		h.run(cmd)
		h.busy.Store(false)
		h.pending.Done()
	}
}

// run executes cmd, turning an error or panic into the died flag.
func (h *handle) run(cmd command) {
	defer func() {
		if r := recover(); r != nil {
			h.died.Store(true)
			h.log.Errorf("Instance %d panicked in %s: %v", h.index, cmd.name, r)
		}
	}()
	if err := cmd.fn(h.worker); err != nil {
		h.died.Store(true)
		h.log.Errorf("Instance %d failed in %s: %v", h.index, cmd.name, err)
	}
}

// call enqueues fn without waiting for it to run.
func (h *handle) call(name string, fn func(Worker) error) error {
	if h.stopped {
		return fmt.Errorf("instance %d: %w", h.index, ErrClosed)
	}
	if !h.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("instance %d: %w", h.index, ErrBusy)
	}
	h.pending.Add(1)
	h.cmds <- command{name: name, fn: fn}
	return nil
}

// wait blocks until the in-flight command, if any, has finished.
func (h *handle) wait() {
	h.pending.Wait()
}

// hasDied reports the worker's crash flag.
func (h *handle) hasDied() bool {
	return h.died.Load()
}

// stop ends the goroutine once the in-flight command has finished.
func (h *handle) stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	close(h.cmds)
	<-h.done
}

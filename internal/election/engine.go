/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package election

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/goelect/leader"
	"github.com/tochemey/goelect/log"
)

// Engine bundles the pieces every backend engine is made of
type Engine struct {
	machine    *Machine
	notifier   *Notifier
	runner     *Runner
	logger     log.Logger
	generation *atomic.Uint64
}

// NewEngine creates an Engine for the candidate.
// backend is the name reported in leadership events.
func NewEngine(backend string, candidate leader.Candidate, logger log.Logger) *Engine {
	logger = logger.With("backend", backend, "role", candidate.Role(), "candidate", candidate.ID())
	machine := NewMachine()
	return &Engine{
		machine:    machine,
		notifier:   NewNotifier(backend, candidate, machine, logger),
		runner:     NewRunner(logger),
		logger:     logger,
		generation: atomic.NewUint64(0),
	}
}

// Start moves the machine to Acquiring and runs the loop until Stop.
// It returns false when the engine is already running, and ErrStillStopping
// while the loop of a timed out Stop is still winding down.
func (e *Engine) Start(ctx context.Context, loop func(ctx context.Context)) (bool, error) {
	var generation uint64
	prepare := func() {
		generation = e.generation.Inc()
		e.machine.Store(leader.Acquiring)
	}
	return e.runner.Start(ctx, prepare, func(ctx context.Context) {
		defer func() {
			// only the latest loop may mark the engine stopped
			if e.generation.Load() == generation {
				e.machine.Store(leader.Stopped)
			}
		}()
		loop(ctx)
	})
}

// Stop stops the loop, waiting at most timeout
func (e *Engine) Stop(ctx context.Context, timeout time.Duration) error {
	return e.runner.Stop(ctx, timeout)
}

// IsRunning reports whether the engine is running
func (e *Engine) IsRunning() bool {
	return e.runner.IsRunning()
}

// State returns the election state
func (e *Engine) State() leader.State {
	return e.machine.Load()
}

// Machine returns the election state machine
func (e *Engine) Machine() *Machine {
	return e.machine
}

// Notifier returns the grant and revocation notifier
func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

// Logger returns the engine logger
func (e *Engine) Logger() log.Logger {
	return e.logger
}

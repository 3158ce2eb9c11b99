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
	"sync"
	"time"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/log"
)

// Runner owns the lifecycle of an engine's acquisition loop
type Runner struct {
	logger  log.Logger
	mu      sync.Mutex
	running *atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner creates an instance of Runner
func NewRunner(logger log.Logger) *Runner {
	return &Runner{
		logger:  logger,
		running: atomic.NewBool(false),
	}
}

// Start runs the loop on its own goroutine until Stop is called.
// prepare, when not nil, runs synchronously before the loop is launched.
// The loop context keeps the values of ctx but not its cancellation.
// Start returns false when the runner is already running, and
// ErrStillStopping while the loop of a timed out Stop has not returned yet.
func (r *Runner) Start(ctx context.Context, prepare func(), loop func(ctx context.Context)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return false, nil
	}

	if r.lingering() {
		return false, gerrors.ErrStillStopping
	}

	if prepare != nil {
		prepare()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.running.Store(true)

	go func() {
		defer close(done)
		loop(loopCtx)
	}()
	return true, nil
}

// Stop cancels the loop and waits for it to return, at most timeout.
// After a timed out Stop, calling Stop again waits for the same loop.
func (r *Runner) Stop(ctx context.Context, timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		return nil
	}

	if r.running.Load() {
		r.running.Store(false)
		r.cancel()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warnf("election loop did not stop within %s", timeout)
		return gerrors.ErrShutdownTimeout
	}
}

// lingering reports whether a stopped loop has not returned yet.
// It must be called with the lock held.
func (r *Runner) lingering() bool {
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// IsRunning reports whether the loop has been started and not stopped
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// Sleep waits for d or for ctx to be done.
// It returns false when ctx is done.
func Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Detached returns a context bounded by timeout that survives the
// cancellation of ctx. It is used to release backend tokens while stopping.
func Detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

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

package olric

import (
	"context"
	"errors"
	"time"

	"github.com/tochemey/olric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/election"
	"github.com/tochemey/goelect/leader"
)

// Backend is the name of the engine in the published events
const Backend = "olric"

// Initiator runs the leader election of a candidate on an olric distributed
// map used as a lock namespace.
//
// The engine blocks on the pessimistic lock of the role. Once locked it
// writes the candidate id as a marker and keeps the lock lease alive until
// the leadership ends. The marker is removed and the lock released when the
// leadership is given up.
type Initiator struct {
	engine    *election.Engine
	candidate leader.Candidate
	config    *Config
	store     lockMap
	lockKey   string
	current   *atomic.Pointer[election.Term]
}

// enforce compilation error
var _ leader.Initiator = (*Initiator)(nil)

// New creates an Initiator for the candidate using the given olric client
func New(client olric.Client, candidate leader.Candidate, config *Config) (*Initiator, error) {
	if client == nil {
		return nil, gerrors.ErrClientRequired
	}

	cfg, err := sanitized(config)
	if err != nil {
		return nil, err
	}

	dmap, err := client.NewDMap(cfg.MapName)
	if err != nil {
		return nil, err
	}
	return newInitiator(newDMapStore(dmap), candidate, cfg)
}

func newInitiator(store lockMap, candidate leader.Candidate, config *Config) (*Initiator, error) {
	if err := election.ValidateCandidate(candidate); err != nil {
		return nil, err
	}

	cfg, err := sanitized(config)
	if err != nil {
		return nil, err
	}

	return &Initiator{
		engine:    election.NewEngine(Backend, candidate, cfg.Logger),
		candidate: candidate,
		config:    cfg,
		store:     store,
		lockKey:   candidate.Role() + ".lock",
		current:   atomic.NewPointer[election.Term](nil),
	}, nil
}

// Start implements leader.Initiator
func (x *Initiator) Start(ctx context.Context) error {
	if x.config.Disabled {
		x.engine.Logger().Info("olric leader election is disabled")
		return nil
	}

	started, err := x.engine.Start(ctx, x.run)
	if err != nil {
		return err
	}

	if started {
		x.engine.Logger().Infof("olric leader election started on map=(%s)", x.config.MapName)
	}
	return nil
}

// Stop implements leader.Initiator
func (x *Initiator) Stop(ctx context.Context) error {
	return x.engine.Stop(ctx, x.config.ShutdownTimeout)
}

// IsRunning implements leader.Initiator
func (x *Initiator) IsRunning() bool {
	return x.engine.IsRunning()
}

// IsLeader implements leader.Initiator.
// It asks the map whether the marker and the lock are still ours.
func (x *Initiator) IsLeader() bool {
	term := x.current.Load()
	return term != nil && term.IsLeader()
}

// State implements leader.Initiator
func (x *Initiator) State() leader.State {
	return x.engine.State()
}

// SetLeaderEventPublisher implements leader.Initiator
func (x *Initiator) SetLeaderEventPublisher(publisher leader.Publisher) {
	x.engine.Notifier().SetPublisher(publisher)
}

func (x *Initiator) run(ctx context.Context) {
	for ctx.Err() == nil {
		term, err := x.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			if !errors.Is(err, errContended) {
				x.engine.Logger().Warnf("failed to acquire leadership: %v", err)
				if !election.Sleep(ctx, x.config.RetryInterval) {
					return
				}
			}
			continue
		}

		backoff := x.hold(ctx, term)
		if ctx.Err() != nil {
			return
		}

		if backoff > 0 && !election.Sleep(ctx, backoff) {
			return
		}
	}
}

// acquire waits at most LockWait for the lock then writes the marker
func (x *Initiator) acquire(ctx context.Context) (*election.Term, error) {
	lockCtx, cancel := context.WithTimeout(ctx, x.config.LockWait+x.config.OperationTimeout)
	defer cancel()

	lock, err := x.store.Lock(lockCtx, x.lockKey, x.config.LockLease, x.config.LockWait)
	if err != nil {
		return nil, err
	}

	opCtx, cancelOp := context.WithTimeout(ctx, x.config.OperationTimeout)
	defer cancelOp()
	if err := x.store.Put(opCtx, x.candidate.Role(), x.candidate.ID()); err != nil {
		x.unlock(lock)
		return nil, err
	}

	term := election.NewTerm(ctx, x.candidate, lock, x.leaderQuery(lock))
	x.current.Store(term)
	if !x.engine.Notifier().Grant(term) {
		x.current.Store(nil)
		x.clear(lock)
		return nil, errContended
	}
	return term, nil
}

// hold renews the lock lease until the leadership is lost, yielded or the
// engine stopped. It returns how long to wait before contending again.
func (x *Initiator) hold(ctx context.Context, term *election.Term) time.Duration {
	lock := term.Token().(lockHandle)
	ticker := time.NewTicker(x.config.RenewalInterval)
	defer ticker.Stop()

	lastLease := time.Now()
	for {
		select {
		case <-ctx.Done():
			x.revoke(term, true)
			return 0
		case <-term.Yielded():
			x.revoke(term, true)
			return x.config.YieldBackoff
		case <-ticker.C:
			err := x.renew(ctx, lock)
			switch {
			case err == nil:
				lastLease = time.Now()
			case errors.Is(err, errLost):
				x.engine.Logger().Warn("leadership lock was lost")
				x.revoke(term, false)
				return 0
			case time.Since(lastLease) >= x.config.LockLease:
				x.engine.Logger().Warnf("no successful lock renewal within %s: %v", x.config.LockLease, err)
				x.revoke(term, false)
				return 0
			default:
				x.engine.Logger().Warnf("lock renewal failed: %v", err)
			}
		}
	}
}

func (x *Initiator) renew(ctx context.Context, lock lockHandle) error {
	opCtx, cancel := context.WithTimeout(ctx, x.config.OperationTimeout)
	defer cancel()
	return lock.Lease(opCtx, x.config.LockLease)
}

// leaderQuery returns the IsLeader query of a term: the marker must name the
// candidate and the lock lease must still be renewable with our handle.
// A lock that expired and was taken by another member fails the renewal.
func (x *Initiator) leaderQuery(lock lockHandle) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), x.config.OperationTimeout)
		defer cancel()

		marker, ok, err := x.store.Get(ctx, x.candidate.Role())
		if err != nil || !ok || marker != x.candidate.ID() {
			return false
		}
		return lock.Lease(ctx, x.config.LockLease) == nil
	}
}

func (x *Initiator) revoke(term *election.Term, release bool) {
	var releaser func(ctx context.Context) error
	if release {
		lock := term.Token().(lockHandle)
		releaser = func(ctx context.Context) error {
			return x.release(ctx, lock)
		}
	}

	ctx, cancel := election.Detached(context.Background(), x.config.OperationTimeout)
	defer cancel()
	x.engine.Notifier().Revoke(ctx, term, releaser)
	x.current.CompareAndSwap(term, nil)
}

// release removes the marker then unlocks
func (x *Initiator) release(ctx context.Context, lock lockHandle) error {
	return multierr.Combine(x.store.Delete(ctx, x.candidate.Role()), lock.Unlock(ctx))
}

func (x *Initiator) clear(lock lockHandle) {
	ctx, cancel := election.Detached(context.Background(), x.config.OperationTimeout)
	defer cancel()
	if err := x.release(ctx, lock); err != nil {
		x.engine.Logger().Warnf("failed to release leadership lock: %v", err)
	}
}

func (x *Initiator) unlock(lock lockHandle) {
	ctx, cancel := election.Detached(context.Background(), x.config.OperationTimeout)
	defer cancel()
	if err := lock.Unlock(ctx); err != nil {
		x.engine.Logger().Warnf("failed to release leadership lock: %v", err)
	}
}

func sanitized(config *Config) (*Config, error) {
	cfg := new(Config)
	if config != nil {
		*cfg = *config
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(err)
	}
	return cfg, nil
}

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

package etcd

import (
	"context"
	"errors"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/election"
	"github.com/tochemey/goelect/leader"
)

// Backend is the backend name reported in leadership events
const Backend = "etcd"

// Initiator elects a candidate using a TTL-bound etcd key.
//
// The candidate leads while the key <namespace>/<role> holds its id. The key
// is created only when absent and is bound to a lease. While leading, the
// lease is kept alive and the key re-put on every heartbeat, both
// conditioned on the key still being ours. A rejected condition is a loss
// of leadership.
type Initiator struct {
	engine    *election.Engine
	candidate leader.Candidate
	config    *Config
	mutex     mutex
	current   *atomic.Pointer[election.Term]
}

// enforce compilation error
var _ leader.Initiator = (*Initiator)(nil)

// New creates an Initiator for the candidate using the given etcd client.
func New(client *clientv3.Client, candidate leader.Candidate, config *Config) (*Initiator, error) {
	if client == nil {
		return nil, gerrors.ErrClientRequired
	}

	cfg, err := sanitized(config)
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimSuffix(cfg.Namespace, "/") + "/"
	return newInitiator(newLeaseMutex(namespace.NewKV(client.KV, prefix), namespace.NewLease(client.Lease, prefix)), candidate, cfg)
}

func newInitiator(mutex mutex, candidate leader.Candidate, config *Config) (*Initiator, error) {
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
		mutex:     mutex,
		current:   atomic.NewPointer[election.Term](nil),
	}, nil
}

// Start implements leader.Initiator
func (x *Initiator) Start(ctx context.Context) error {
	if x.config.Disabled {
		x.engine.Logger().Info("etcd leader election is disabled")
		return nil
	}

	started, err := x.engine.Start(ctx, x.run)
	if err != nil {
		return err
	}

	if started {
		x.engine.Logger().Infof("contending for role=(%s) under namespace=(%s)", x.candidate.Role(), x.config.Namespace)
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

// IsLeader implements leader.Initiator
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
	for {
		term := x.acquire(ctx)
		if term == nil {
			if !election.Sleep(ctx, x.config.HeartbeatInterval) {
				return
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

// acquire makes a single attempt to create the key.
// A failed attempt never changes the election state.
func (x *Initiator) acquire(ctx context.Context) *election.Term {
	opCtx, cancel := context.WithTimeout(ctx, x.config.OperationTimeout)
	defer cancel()

	tok, err := x.mutex.Acquire(opCtx, x.candidate.Role(), x.candidate.ID(), x.config.TTL)
	if err != nil {
		if errors.Is(err, errContended) {
			x.engine.Logger().Debug("leadership key is held by another candidate")
			return nil
		}
		x.engine.Logger().Warnf("failed to acquire leadership: %v", err)
		return nil
	}

	term := election.NewTerm(ctx, x.candidate, tok, nil)
	x.current.Store(term)
	if !x.engine.Notifier().Grant(term) {
		x.current.Store(nil)
		x.release(tok)
		return nil
	}
	return term
}

// hold maintains the leadership until it is lost, yielded or the engine
// stopped. It returns how long to wait before contending again.
func (x *Initiator) hold(ctx context.Context, term *election.Term) time.Duration {
	tok := term.Token().(*token)
	ticker := time.NewTicker(x.config.HeartbeatInterval)
	defer ticker.Stop()

	lastBeat := time.Now()
	for {
		select {
		case <-ctx.Done():
			x.revoke(term, true)
			return 0
		case <-term.Yielded():
			x.revoke(term, true)
			return x.config.YieldBackoff
		case <-ticker.C:
			err := x.heartbeat(ctx, tok)
			switch {
			case err == nil:
				lastBeat = time.Now()
			case errors.Is(err, errLost):
				x.engine.Logger().Warn("leadership key was lost")
				x.revoke(term, false)
				return 0
			case time.Since(lastBeat) >= x.config.TTL:
				// the store expired the key even though each failure looked transient
				x.engine.Logger().Warnf("no successful heartbeat within %s: %v", x.config.TTL, err)
				x.revoke(term, false)
				return 0
			default:
				x.engine.Logger().Warnf("heartbeat failed: %v", err)
			}
		}
	}
}

func (x *Initiator) heartbeat(ctx context.Context, tok *token) error {
	opCtx, cancel := context.WithTimeout(ctx, x.config.OperationTimeout)
	defer cancel()
	return x.mutex.Refresh(opCtx, tok)
}

func (x *Initiator) revoke(term *election.Term, release bool) {
	var releaser func(ctx context.Context) error
	if release {
		releaser = func(ctx context.Context) error {
			return x.mutex.Release(ctx, term.Token().(*token))
		}
	}

	ctx, cancel := election.Detached(context.Background(), x.config.OperationTimeout)
	defer cancel()
	x.engine.Notifier().Revoke(ctx, term, releaser)
	x.current.CompareAndSwap(term, nil)
}

func (x *Initiator) release(tok *token) {
	ctx, cancel := election.Detached(context.Background(), x.config.OperationTimeout)
	defer cancel()
	if err := x.mutex.Release(ctx, tok); err != nil {
		x.engine.Logger().Warnf("failed to release leadership key: %v", err)
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

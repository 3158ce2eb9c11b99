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

package zookeeper

import (
	"context"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/election"
	"github.com/tochemey/goelect/leader"
)

// Backend is the name of the engine in the published events
const Backend = "zookeeper"

// Initiator runs the leader election of a candidate against ZooKeeper.
//
// The candidate keeps contending after an involuntary loss: a new node is
// registered and the candidate waits for its turn again.
type Initiator struct {
	engine    *election.Engine
	candidate leader.Candidate
	config    *Config
	conn      connection
	ownsConn  bool
	selector  *selector
	current   *atomic.Pointer[election.Term]
}

// enforce compilation error
var _ leader.Initiator = (*Initiator)(nil)

// New creates an Initiator for the candidate.
//
// When conn is nil a connection to the configured Servers is created, and
// closed by Stop. A given connection is dialed by Start when not started yet.
func New(conn *Conn, candidate leader.Candidate, config *Config) (*Initiator, error) {
	cfg, err := sanitized(config)
	if err != nil {
		return nil, err
	}

	if conn != nil {
		return newInitiator(conn, false, candidate, cfg)
	}

	if len(cfg.Servers) == 0 {
		return nil, gerrors.ErrClientRequired
	}
	return newInitiator(NewConn(cfg.Servers, cfg.SessionTimeout, cfg.Logger), true, candidate, cfg)
}

func newInitiator(conn connection, ownsConn bool, candidate leader.Candidate, config *Config) (*Initiator, error) {
	if err := election.ValidateCandidate(candidate); err != nil {
		return nil, err
	}

	cfg, err := sanitized(config)
	if err != nil {
		return nil, err
	}

	engine := election.NewEngine(Backend, candidate, cfg.Logger)
	rolePath := cfg.Namespace + "/" + candidate.Role()
	return &Initiator{
		engine:    engine,
		candidate: candidate,
		config:    cfg,
		conn:      conn,
		ownsConn:  ownsConn,
		selector:  newSelector(conn, rolePath, candidate.ID(), cfg.RetryInterval, engine.Logger()),
		current:   atomic.NewPointer[election.Term](nil),
	}, nil
}

// Start implements leader.Initiator
func (x *Initiator) Start(ctx context.Context) error {
	if x.config.Disabled {
		x.engine.Logger().Info("zookeeper leader election is disabled")
		return nil
	}

	if !x.conn.Started() {
		if err := x.conn.Start(ctx); err != nil {
			return err
		}
	}

	started, err := x.engine.Start(ctx, x.run)
	if err != nil {
		return err
	}

	if started {
		x.engine.Logger().Infof("zookeeper leader election started under path=(%s)", x.selector.path)
	}
	return nil
}

// Stop implements leader.Initiator
func (x *Initiator) Stop(ctx context.Context) error {
	err := x.engine.Stop(ctx, x.config.ShutdownTimeout)
	if x.ownsConn {
		x.conn.Close()
	}
	return err
}

// IsRunning implements leader.Initiator
func (x *Initiator) IsRunning() bool {
	return x.engine.IsRunning()
}

// IsLeader implements leader.Initiator.
// It asks the election recipe rather than the engine state.
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

// Participants returns the ids of the candidates registered for the role,
// the leader first
func (x *Initiator) Participants() ([]string, error) {
	return x.selector.participants()
}

func (x *Initiator) run(ctx context.Context) {
	for ctx.Err() == nil {
		sessionLost := x.conn.WatchSessionLoss()
		node, err := x.selector.enqueue()
		if err != nil {
			x.engine.Logger().Warn(err)
			if !election.Sleep(ctx, x.config.RetryInterval) {
				return
			}
			continue
		}

		leading, err := x.selector.await(ctx, node, sessionLost)
		if !leading {
			if err != nil {
				x.engine.Logger().Warnf("requeueing candidate: %v", err)
			}
			x.remove(node)
			if ctx.Err() != nil || !election.Sleep(ctx, x.config.RetryInterval) {
				return
			}
			continue
		}

		term := election.NewTerm(ctx, x.candidate, node, x.selector.HasLeadership)
		x.current.Store(term)
		if !x.engine.Notifier().Grant(term) {
			x.current.Store(nil)
			x.remove(node)
			continue
		}

		backoff := x.hold(ctx, term, node, sessionLost)
		if ctx.Err() != nil {
			return
		}

		if backoff > 0 && !election.Sleep(ctx, backoff) {
			return
		}
	}
}

// hold waits until the leadership is lost, yielded or the engine stopped.
// It returns how long to wait before registering again.
func (x *Initiator) hold(ctx context.Context, term *election.Term, node string, sessionLost <-chan struct{}) time.Duration {
	var (
		events <-chan zk.Event
		rearm  <-chan time.Time
	)

	for {
		if events == nil && rearm == nil {
			watch, exists, err := x.selector.watch(node)
			switch {
			case err != nil:
				x.engine.Logger().Warnf("failed to watch candidate node=(%s): %v", node, err)
				rearm = time.After(x.config.RetryInterval)
			case !exists:
				x.engine.Logger().Warnf("candidate node=(%s) no longer exists", node)
				x.revoke(term, node, false)
				return 0
			default:
				events = watch
			}
		}

		select {
		case <-ctx.Done():
			x.revoke(term, node, true)
			return 0
		case <-term.Yielded():
			x.revoke(term, node, true)
			return x.config.YieldBackoff
		case <-sessionLost:
			x.engine.Logger().Warn("zookeeper session lost while leading")
			x.revoke(term, node, true)
			return 0
		case event := <-events:
			if event.Type == zk.EventNodeDeleted {
				x.engine.Logger().Warnf("candidate node=(%s) was deleted", node)
				x.revoke(term, node, false)
				return 0
			}
			events = nil
		case <-rearm:
			rearm = nil
		}
	}
}

func (x *Initiator) revoke(term *election.Term, node string, release bool) {
	var releaser func(ctx context.Context) error
	if release {
		releaser = func(ctx context.Context) error {
			return x.selector.remove(ctx, node)
		}
	}

	ctx, cancel := election.Detached(context.Background(), x.config.ShutdownTimeout)
	defer cancel()
	x.engine.Notifier().Revoke(ctx, term, releaser)
	x.selector.resign()
	x.current.CompareAndSwap(term, nil)
}

// remove deletes a node that did not lead, best effort
func (x *Initiator) remove(node string) {
	ctx, cancel := election.Detached(context.Background(), x.config.ShutdownTimeout)
	defer cancel()
	if err := x.selector.remove(ctx, node); err != nil {
		x.engine.Logger().Warnf("failed to delete candidate node=(%s): %v", node, err)
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

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

package consul

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/election"
	"github.com/tochemey/goelect/leader"
)

// Backend is the name of the engine in the published events
const Backend = "consul"

// Initiator runs the leader election of a candidate against consul.
//
// A session is created before the first acquisition attempt and renewed for
// as long as it is in use. The candidate is the leader when its session has
// acquired the key <Namespace><role>. A candidate that failed to acquire the
// key waits for the key to change with a blocking read.
type Initiator struct {
	engine    *election.Engine
	candidate leader.Candidate
	config    *Config
	kv        kv
	sessions  sessions
	entry     *sessionEntry
	key       string
	current   *atomic.Pointer[election.Term]
	index     *atomic.Uint64

	// only accessed by the election loop
	session *session
	vacant  bool
}

// enforce compilation error
var _ leader.Initiator = (*Initiator)(nil)

// New creates an Initiator for the candidate using the given consul client
func New(client *api.Client, candidate leader.Candidate, config *Config) (*Initiator, error) {
	if client == nil {
		return nil, gerrors.ErrClientRequired
	}
	return newInitiator(client.KV(), client.Session(), candidate, config)
}

func newInitiator(kv kv, sessions sessions, candidate leader.Candidate, config *Config) (*Initiator, error) {
	if err := election.ValidateCandidate(candidate); err != nil {
		return nil, err
	}

	cfg := new(Config)
	if config != nil {
		*cfg = *config
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(err)
	}

	return &Initiator{
		engine:    election.NewEngine(Backend, candidate, cfg.Logger),
		candidate: candidate,
		config:    cfg,
		kv:        kv,
		sessions:  sessions,
		entry: &sessionEntry{
			name:      fmt.Sprintf("goelect-%s-%s", candidate.Role(), candidate.ID()),
			ttl:       cfg.Session.TTL,
			lockDelay: cfg.Session.LockDelay,
			behavior:  cfg.Session.Behavior,
		},
		key:     cfg.Namespace + candidate.Role(),
		current: atomic.NewPointer[election.Term](nil),
		index:   atomic.NewUint64(0),
	}, nil
}

// Start implements leader.Initiator
func (x *Initiator) Start(ctx context.Context) error {
	if x.config.Disabled {
		x.engine.Logger().Info("consul leader election is disabled")
		return nil
	}

	started, err := x.engine.Start(ctx, x.run)
	if err != nil {
		return err
	}

	if started {
		x.engine.Logger().Infof("consul leader election started on key=(%s)", x.key)
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
	defer x.closeSession()

	for ctx.Err() == nil {
		if x.session == nil {
			if !x.openSession(ctx) {
				if !election.Sleep(ctx, x.config.PollInterval) {
					return
				}
				continue
			}
		}

		acquired, err := x.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			if isSessionError(err) {
				x.engine.Logger().Warnf("consul session is no longer valid: %v", err)
				x.closeSession()
			} else {
				x.engine.Logger().Warnf("failed to acquire leadership: %v", err)
			}

			if !election.Sleep(ctx, x.config.PollInterval) {
				return
			}
			continue
		}

		if !acquired {
			x.wait(ctx)
			continue
		}

		term := election.NewTerm(ctx, x.candidate, x.session.id, nil)
		x.current.Store(term)
		if !x.engine.Notifier().Grant(term) {
			x.current.Store(nil)
			x.release(x.session.id)
			continue
		}

		backoff := x.hold(ctx, term, x.session)
		if ctx.Err() != nil {
			return
		}

		if backoff > 0 && !election.Sleep(ctx, backoff) {
			return
		}
	}
}

func (x *Initiator) openSession(ctx context.Context) bool {
	s, err := openSession(ctx, x.sessions, x.entry, x.config.Session.RenewalInterval, x.engine.Logger())
	if err != nil {
		if ctx.Err() == nil {
			x.engine.Logger().Warn(err)
		}
		return false
	}

	x.engine.Logger().Debugf("consul session=(%s) created", s.id)
	x.session = s
	return true
}

// closeSession destroys the current session, best effort
func (x *Initiator) closeSession() {
	if x.session == nil {
		return
	}

	ctx, cancel := election.Detached(context.Background(), x.config.ShutdownTimeout)
	defer cancel()
	if err := x.session.close(ctx, x.sessions); err != nil {
		x.engine.Logger().Warn(err)
	}
	x.session = nil
}

// acquire makes a single attempt to acquire the key with the current session
func (x *Initiator) acquire(ctx context.Context) (bool, error) {
	if x.session.Failed() {
		return false, errSessionInvalidated
	}

	pair := &api.KVPair{
		Key:     x.key,
		Value:   []byte(x.candidate.ID()),
		Session: x.session.id,
	}

	acquired, _, err := x.kv.Acquire(pair, writeOptions(ctx))
	return acquired, err
}

// wait blocks until the key changes, WaitTime elapses or the session is lost.
// When the last read found the key free the acquisition was refused by the
// consul lock delay, and the wait is bounded by PollInterval instead.
func (x *Initiator) wait(ctx context.Context) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lost := x.session.Lost()
	go func() {
		select {
		case <-lost:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	waitTime := x.config.WaitTime
	if x.vacant {
		waitTime = x.config.PollInterval
	}

	pair, meta, err := x.get(waitCtx, waitTime)
	if err != nil {
		if waitCtx.Err() == nil {
			x.engine.Logger().Warnf("failed to watch the leadership key: %v", err)
			election.Sleep(ctx, x.config.PollInterval)
		}
		return
	}

	x.track(meta)
	x.vacant = pair == nil || pair.Session == ""
	if x.vacant {
		return
	}

	x.engine.Logger().Debugf("leadership key is held by candidate=(%s)", string(pair.Value))
}

// hold maintains the leadership until it is lost, yielded or the engine
// stopped. It returns how long to wait before contending again.
func (x *Initiator) hold(ctx context.Context, term *election.Term, s *session) time.Duration {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	preempted := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		x.watch(watchCtx, s.id, preempted)
	}()

	defer func() {
		cancelWatch()
		<-watched
	}()

	select {
	case <-ctx.Done():
		x.revoke(term, true)
		return 0
	case <-term.Yielded():
		x.revoke(term, true)
		return x.config.YieldBackoff
	case <-s.Lost():
		x.engine.Logger().Warn("leadership lost with the consul session")
		x.revoke(term, false)
		return 0
	case <-preempted:
		x.engine.Logger().Warn("leadership key is no longer held by the consul session")
		x.revoke(term, false)
		return 0
	}
}

// watch keeps a blocking read on the key and closes preempted once the
// key is gone or held by another session
func (x *Initiator) watch(ctx context.Context, sessionID string, preempted chan<- struct{}) {
	for ctx.Err() == nil {
		pair, meta, err := x.get(ctx, x.config.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			x.engine.Logger().Warnf("failed to watch the leadership key: %v", err)
			if !election.Sleep(ctx, x.config.PollInterval) {
				return
			}
			continue
		}

		x.track(meta)
		if pair == nil || pair.Session != sessionID {
			close(preempted)
			return
		}
	}
}

// get runs a blocking read of the key starting at the last seen index
func (x *Initiator) get(ctx context.Context, waitTime time.Duration) (*api.KVPair, *api.QueryMeta, error) {
	options := &api.QueryOptions{
		WaitIndex: x.index.Load(),
		WaitTime:  waitTime,
	}
	return x.kv.Get(x.key, options.WithContext(ctx))
}

// track records the index of a blocking read. An index going backwards
// means the consul state was reset, hence the index is reset as well.
func (x *Initiator) track(meta *api.QueryMeta) {
	if meta == nil {
		return
	}

	if meta.LastIndex < x.index.Load() {
		x.index.Store(0)
		return
	}
	x.index.Store(meta.LastIndex)
}

func (x *Initiator) revoke(term *election.Term, release bool) {
	var releaser func(ctx context.Context) error
	if release {
		id := term.Token().(string)
		releaser = func(ctx context.Context) error {
			return x.releasePair(ctx, id)
		}
	}

	ctx, cancel := election.Detached(context.Background(), x.config.ShutdownTimeout)
	defer cancel()
	x.engine.Notifier().Revoke(ctx, term, releaser)
	x.current.CompareAndSwap(term, nil)
}

func (x *Initiator) release(sessionID string) {
	ctx, cancel := election.Detached(context.Background(), x.config.ShutdownTimeout)
	defer cancel()
	if err := x.releasePair(ctx, sessionID); err != nil {
		x.engine.Logger().Warn(err)
	}
}

func (x *Initiator) releasePair(ctx context.Context, sessionID string) error {
	pair := &api.KVPair{
		Key:     x.key,
		Value:   []byte(x.candidate.ID()),
		Session: sessionID,
	}

	if _, _, err := x.kv.Release(pair, writeOptions(ctx)); err != nil {
		return fmt.Errorf("failed to release key=(%s): %w", x.key, err)
	}
	return nil
}

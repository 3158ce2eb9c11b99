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
	"fmt"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/leader"
	"github.com/tochemey/goelect/log"
)

type publisherRef struct {
	publisher leader.Publisher
}

// Notifier delivers grants and revocations to a candidate and to the
// configured event publisher. Events are always published before the
// matching callback is invoked.
type Notifier struct {
	backend   string
	candidate leader.Candidate
	machine   *Machine
	logger    log.Logger
	publisher *atomic.Pointer[publisherRef]
}

// NewNotifier creates an instance of Notifier
func NewNotifier(backend string, candidate leader.Candidate, machine *Machine, logger log.Logger) *Notifier {
	return &Notifier{
		backend:   backend,
		candidate: candidate,
		machine:   machine,
		logger:    logger,
		publisher: atomic.NewPointer(&publisherRef{publisher: leader.NoopPublisher()}),
	}
}

// SetPublisher replaces the event publisher. A nil publisher disables publication.
func (n *Notifier) SetPublisher(publisher leader.Publisher) {
	if publisher == nil {
		publisher = leader.NoopPublisher()
	}
	n.publisher.Store(&publisherRef{publisher: publisher})
}

// Grant moves the machine to Leader, publishes the Granted event and starts
// the candidate's OnGranted callback on its own goroutine. It returns once
// the callback has been entered. Grant returns false, without any
// notification, when the machine is no longer acquiring.
func (n *Notifier) Grant(term *Term) bool {
	if !n.machine.Transition(leader.Acquiring, leader.Leader) {
		term.leading.Store(false)
		term.cancel()
		close(term.started)
		close(term.finished)
		return false
	}

	n.logger.Infof("%s granted leadership of role=(%s)", term.candidateID, term.role)
	n.publish(leader.EventGranted, term)
	go n.hold(term)
	<-term.started
	return true
}

// Revoke ends the term. Only the first call for a given term proceeds; the
// others return false. The release hook, when not nil, frees the backend
// token. The Revoked event is published and OnRevoked invoked only after
// OnGranted has returned.
func (n *Notifier) Revoke(ctx context.Context, term *Term, release func(ctx context.Context) error) bool {
	if !term.leading.CompareAndSwap(true, false) {
		return false
	}

	n.machine.Transition(leader.Leader, leader.Revoking)
	term.cancel()

	if release != nil {
		if err := release(ctx); err != nil {
			n.logger.Warnf("%s failed to release role=(%s): %v", term.candidateID, term.role, err)
		}
	}

	<-term.finished

	n.logger.Infof("%s revoked leadership of role=(%s)", term.candidateID, term.role)
	n.publish(leader.EventRevoked, term)
	if err := n.safely(func() error { return n.candidate.OnRevoked(term) }); err != nil {
		n.logger.Errorf("%s OnRevoked failed for role=(%s): %v", term.candidateID, term.role, err)
	}

	n.machine.Transition(leader.Revoking, leader.Acquiring)
	return true
}

func (n *Notifier) hold(term *Term) {
	defer close(term.finished)
	close(term.started)
	if err := n.safely(func() error { return n.candidate.OnGranted(term) }); err != nil {
		n.logger.Errorf("%s OnGranted failed for role=(%s), relinquishing: %v", term.candidateID, term.role, err)
		term.err.Store(err)
		term.end()
	}
}

func (n *Notifier) publish(kind leader.EventType, term *Term) {
	n.publisher.Load().publisher.Publish(leader.NewEvent(kind, n.backend, term))
}

func (n *Notifier) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewPanicError(r)
		}
	}()
	if err = fn(); err != nil {
		return fmt.Errorf("callback failed: %w", err)
	}
	return nil
}

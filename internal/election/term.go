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

	"github.com/tochemey/goelect/leader"
)

// Term is a single grant of leadership.
//
// It implements leader.Context. A Term starts leading and stops leading
// exactly once, when the Notifier revokes it. Ending it early through
// Yield only signals the owning engine, which performs the revocation.
type Term struct {
	role        string
	candidateID string
	token       any

	leading *atomic.Bool
	ended   *atomic.Bool
	query   func() bool

	ctx      context.Context
	cancel   context.CancelFunc
	yielded  chan struct{}
	started  chan struct{}
	finished chan struct{}
	err      *atomic.Error
}

// enforce compilation error
var _ leader.Context = (*Term)(nil)

// NewTerm creates a Term for the given candidate.
// token is the backend proof of ownership. query, when not nil, is the
// backend query IsLeader consults while the term is held.
func NewTerm(parent context.Context, candidate leader.Candidate, token any, query func() bool) *Term {
	ctx, cancel := context.WithCancel(parent)
	return &Term{
		role:        candidate.Role(),
		candidateID: candidate.ID(),
		token:       token,
		leading:     atomic.NewBool(true),
		ended:       atomic.NewBool(false),
		query:       query,
		ctx:         ctx,
		cancel:      cancel,
		yielded:     make(chan struct{}),
		started:     make(chan struct{}),
		finished:    make(chan struct{}),
		err:         atomic.NewError(nil),
	}
}

// IsLeader implements leader.Context
func (t *Term) IsLeader() bool {
	if !t.leading.Load() {
		return false
	}
	if t.query != nil {
		return t.query()
	}
	return true
}

// Yield implements leader.Context
func (t *Term) Yield() {
	if !t.leading.Load() {
		return
	}
	t.end()
}

// Done implements leader.Context
func (t *Term) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Role implements leader.Context
func (t *Term) Role() string {
	return t.role
}

// CandidateID implements leader.Context
func (t *Term) CandidateID() string {
	return t.candidateID
}

// String implements leader.Context
func (t *Term) String() string {
	return fmt.Sprintf("Context{role=%s, id=%s, isLeader=%t}", t.role, t.candidateID, t.IsLeader())
}

// Token returns the backend proof of ownership
func (t *Term) Token() any {
	return t.token
}

// Yielded is closed when the term is relinquished by the candidate, either
// explicitly or because OnGranted failed
func (t *Term) Yielded() <-chan struct{} {
	return t.yielded
}

// Finished is closed once OnGranted has returned
func (t *Term) Finished() <-chan struct{} {
	return t.finished
}

// Err returns the error OnGranted failed with, if any
func (t *Term) Err() error {
	return t.err.Load()
}

// Leading reports whether the term has not been revoked yet
func (t *Term) Leading() bool {
	return t.leading.Load()
}

// end signals the relinquishment once
func (t *Term) end() {
	if t.ended.CompareAndSwap(false, true) {
		close(t.yielded)
		t.cancel()
	}
}

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

package testutil

import (
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/goelect/leader"
)

// Candidate is a leader.Candidate recording its notifications.
// OnGranted blocks until the grant ends, like a long-running leader task.
type Candidate struct {
	id   string
	role string

	mu      sync.Mutex
	ctx     leader.Context
	history []leader.EventType

	grants     *atomic.Int32
	revokes    *atomic.Int32
	violations *atomic.Int32

	// GrantHook, when set before the candidate is used, runs at the beginning of OnGranted
	GrantHook func(ctx leader.Context) error
}

// enforce compilation error
var _ leader.Candidate = (*Candidate)(nil)

// NewCandidate creates an instance of Candidate
func NewCandidate(id, role string) *Candidate {
	return &Candidate{
		id:         id,
		role:       role,
		grants:     atomic.NewInt32(0),
		revokes:    atomic.NewInt32(0),
		violations: atomic.NewInt32(0),
	}
}

// ID implements leader.Candidate
func (c *Candidate) ID() string {
	return c.id
}

// Role implements leader.Candidate
func (c *Candidate) Role() string {
	return c.role
}

// OnGranted implements leader.Candidate
func (c *Candidate) OnGranted(ctx leader.Context) error {
	c.mu.Lock()
	if len(c.history) > 0 && c.history[len(c.history)-1] == leader.EventGranted {
		c.violations.Inc()
	}
	c.history = append(c.history, leader.EventGranted)
	c.ctx = ctx
	c.mu.Unlock()
	c.grants.Inc()

	if c.GrantHook != nil {
		if err := c.GrantHook(ctx); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}

// OnRevoked implements leader.Candidate
func (c *Candidate) OnRevoked(ctx leader.Context) error {
	c.mu.Lock()
	if len(c.history) == 0 || c.history[len(c.history)-1] != leader.EventGranted || c.ctx != ctx {
		c.violations.Inc()
	}
	c.history = append(c.history, leader.EventRevoked)
	c.ctx = nil
	c.mu.Unlock()
	c.revokes.Inc()
	return nil
}

// Grants returns the number of OnGranted calls
func (c *Candidate) Grants() int {
	return int(c.grants.Load())
}

// Revokes returns the number of OnRevoked calls
func (c *Candidate) Revokes() int {
	return int(c.revokes.Load())
}

// Granted reports whether the candidate is between OnGranted and OnRevoked
func (c *Candidate) Granted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx != nil
}

// Context returns the context of the current grant, nil when not granted
func (c *Candidate) Context() leader.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Yield relinquishes the current grant, if any
func (c *Candidate) Yield() {
	if ctx := c.Context(); ctx != nil {
		ctx.Yield()
	}
}

// Verify returns an error when grants and revocations were not strictly paired
func (c *Candidate) Verify() error {
	if c.violations.Load() > 0 {
		return errors.New("grant and revoke notifications are not paired")
	}
	return nil
}

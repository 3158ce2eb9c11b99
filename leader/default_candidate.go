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

package leader

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tochemey/goelect/log"
)

// DefaultRole is the role used by NewDefaultCandidate when none is given
const DefaultRole = "leader"

// DefaultCandidate is a Candidate that logs its transitions and keeps
// the context of its current grant, so that the application can yield
// the leadership from anywhere.
type DefaultCandidate struct {
	id     string
	role   string
	logger log.Logger

	mu  sync.RWMutex
	ctx Context
}

// enforce compilation error
var _ Candidate = (*DefaultCandidate)(nil)

// NewDefaultCandidate creates an instance of DefaultCandidate.
// An empty id is replaced by a random UUID and an empty role by DefaultRole.
func NewDefaultCandidate(id, role string, logger log.Logger) *DefaultCandidate {
	if id == "" {
		id = uuid.NewString()
	}
	if role == "" {
		role = DefaultRole
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &DefaultCandidate{
		id:     id,
		role:   role,
		logger: logger.With("role", role, "candidate", id),
	}
}

// ID implements Candidate
func (c *DefaultCandidate) ID() string {
	return c.id
}

// Role implements Candidate
func (c *DefaultCandidate) Role() string {
	return c.role
}

// OnGranted implements Candidate
func (c *DefaultCandidate) OnGranted(ctx Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.logger.Infof("leadership granted: %s", ctx)
	return nil
}

// OnRevoked implements Candidate
func (c *DefaultCandidate) OnRevoked(ctx Context) error {
	c.mu.Lock()
	if c.ctx == ctx {
		c.ctx = nil
	}
	c.mu.Unlock()
	c.logger.Infof("leadership revoked: %s", ctx)
	return nil
}

// Context returns the context of the current grant, nil when not leader
func (c *DefaultCandidate) Context() Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

// IsLeader reports whether the candidate currently holds the role
func (c *DefaultCandidate) IsLeader() bool {
	ctx := c.Context()
	return ctx != nil && ctx.IsLeader()
}

// YieldLeadership relinquishes the current grant, if any
func (c *DefaultCandidate) YieldLeadership() {
	if ctx := c.Context(); ctx != nil {
		ctx.Yield()
	}
}

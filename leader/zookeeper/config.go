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
	"strings"
	"time"

	"github.com/tochemey/goelect/internal/validation"
	"github.com/tochemey/goelect/log"
)

const (
	// DefaultNamespace is the root path of the candidate nodes
	DefaultNamespace = "/goelect/leader"

	defaultSessionTimeout  = 10 * time.Second
	defaultRetryInterval   = 100 * time.Millisecond
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds the configuration of the ZooKeeper election engine.
//
// Candidates of a role register ephemeral sequential nodes under
// <Namespace>/<role>. The candidate owning the lowest node is the leader.
type Config struct {
	// Servers are the ZooKeeper servers (host:port). Only used when New
	// creates the connection itself.
	Servers []string
	// SessionTimeout of the connection created by New
	SessionTimeout time.Duration
	// Namespace is the root path of the election nodes
	Namespace string
	// RetryInterval is the delay before retrying a failed ZooKeeper call
	RetryInterval time.Duration
	// YieldBackoff is how long a candidate that yielded waits before
	// registering again. It defaults to the RetryInterval.
	YieldBackoff time.Duration
	// ShutdownTimeout bounds Stop
	ShutdownTimeout time.Duration
	// Disabled turns Start into a no-op
	Disabled bool
	// Logger is the engine logger. It defaults to log.DefaultLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values of the unset fields
func (c *Config) Sanitize() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	c.Namespace = "/" + strings.Trim(c.Namespace, "/")

	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.YieldBackoff <= 0 {
		c.YieldBackoff = c.RetryInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(c.Namespace != "/", "Namespace must not be the root path").
		AddValidator(validation.NewPositiveDurationValidator("SessionTimeout", c.SessionTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("RetryInterval", c.RetryInterval)).
		AddValidator(validation.NewPositiveDurationValidator("ShutdownTimeout", c.ShutdownTimeout)).
		Validate()
}

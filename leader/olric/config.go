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
	"time"

	"github.com/tochemey/goelect/internal/validation"
	"github.com/tochemey/goelect/log"
)

const (
	// DefaultMapName is the name of the distributed map holding the locks and the markers
	DefaultMapName = "goelect.leader"

	defaultLockLease        = 10 * time.Second
	defaultLockWait         = 5 * time.Second
	defaultRetryInterval    = time.Second
	defaultOperationTimeout = 5 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
)

// Config holds the configuration of the olric election engine.
//
// For a role R the engine locks the key R.lock of the map and, once it
// holds the lock, writes the candidate id under the key R.
type Config struct {
	// MapName is the distributed map used as a lock namespace
	MapName string
	// LockLease is how long the lock survives without being renewed
	LockLease time.Duration
	// LockWait bounds a single blocking lock attempt. The engine keeps
	// attempting until it is stopped.
	LockWait time.Duration
	// RenewalInterval is the period of the lock lease renewal.
	// It defaults to half the LockLease.
	RenewalInterval time.Duration
	// RetryInterval is the delay before retrying after a failed map operation
	RetryInterval time.Duration
	// YieldBackoff is how long a candidate that yielded waits before
	// contending again. It defaults to the RetryInterval.
	YieldBackoff time.Duration
	// OperationTimeout bounds every map operation but the blocking lock
	OperationTimeout time.Duration
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
	if c.MapName == "" {
		c.MapName = DefaultMapName
	}
	if c.LockLease <= 0 {
		c.LockLease = defaultLockLease
	}
	if c.LockWait <= 0 {
		c.LockWait = defaultLockWait
	}
	if c.RenewalInterval <= 0 {
		c.RenewalInterval = c.LockLease / 2
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.YieldBackoff <= 0 {
		c.YieldBackoff = c.RetryInterval
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultOperationTimeout
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
		AddValidator(validation.NewEmptyStringValidator("MapName", c.MapName)).
		AddValidator(validation.NewPositiveDurationValidator("LockLease", c.LockLease)).
		AddValidator(validation.NewPositiveDurationValidator("LockWait", c.LockWait)).
		AddAssertion(c.RenewalInterval > 0 && c.RenewalInterval < c.LockLease, "RenewalInterval must be less than LockLease").
		AddValidator(validation.NewPositiveDurationValidator("OperationTimeout", c.OperationTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("ShutdownTimeout", c.ShutdownTimeout)).
		Validate()
}

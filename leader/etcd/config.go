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
	"crypto/tls"
	"time"

	"github.com/tochemey/goelect/internal/validation"
	"github.com/tochemey/goelect/log"
)

const (
	// DefaultNamespace is the key prefix leadership keys are created under
	DefaultNamespace = "goelect/leader"

	defaultTTL              = 10 * time.Second
	defaultDialTimeout      = 5 * time.Second
	defaultOperationTimeout = 5 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
)

// Config holds the configuration of the etcd election engine
type Config struct {
	// Endpoints is a list of etcd cluster endpoints. Only used by NewClient.
	Endpoints []string
	// DialTimeout for etcd client connections. Only used by NewClient.
	DialTimeout time.Duration
	// TLS configuration (optional). Only used by NewClient.
	TLS *tls.Config
	// Username for etcd authentication (optional). Only used by NewClient.
	Username string
	// Password for etcd authentication (optional). Only used by NewClient.
	Password string

	// Namespace is the key prefix. The leadership key is <Namespace>/<role>.
	Namespace string
	// TTL is the lifetime of the leadership key when it is not refreshed.
	// etcd leases have a one second granularity.
	TTL time.Duration
	// HeartbeatInterval is the period of both the heartbeat and the
	// acquisition attempts. It defaults to half the TTL.
	HeartbeatInterval time.Duration
	// YieldBackoff is how long a candidate that yielded waits before
	// contending again. It defaults to the TTL.
	YieldBackoff time.Duration
	// OperationTimeout bounds every single etcd call
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
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = c.TTL / 2
	}
	if c.YieldBackoff <= 0 {
		c.YieldBackoff = c.TTL
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
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
		AddValidator(validation.NewEmptyStringValidator("Namespace", c.Namespace)).
		AddAssertion(c.TTL >= time.Second, "TTL must be at least one second").
		AddValidator(validation.NewPositiveDurationValidator("HeartbeatInterval", c.HeartbeatInterval)).
		AddAssertion(c.HeartbeatInterval < c.TTL, "HeartbeatInterval must be less than TTL").
		AddValidator(validation.NewPositiveDurationValidator("OperationTimeout", c.OperationTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("ShutdownTimeout", c.ShutdownTimeout)).
		Validate()
}

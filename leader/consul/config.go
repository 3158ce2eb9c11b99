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
	"strings"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/tochemey/goelect/internal/validation"
	"github.com/tochemey/goelect/log"
)

const (
	// DefaultNamespace is the key prefix leadership keys are created under
	DefaultNamespace = "goelect/leader/"

	// minSessionTTL is the lowest session TTL accepted by consul
	minSessionTTL = 10 * time.Second

	defaultWaitTime        = 30 * time.Second
	defaultPollInterval    = time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Config defines the configuration of the consul election engine.
//
// The leadership key is <Namespace><role>. It holds the candidate id and is
// acquired by the engine session.
type Config struct {
	// Address is the address of the consul agent. Only used by NewClient.
	// Default: "127.0.0.1:8500"
	Address string
	// Datacenter specifies the consul datacenter to use. Only used by NewClient.
	Datacenter string
	// Token is the consul ACL token. Only used by NewClient.
	Token string

	// Namespace is the key prefix. A leading slash is removed.
	Namespace string
	// Session configures the session that owns the leadership key
	Session SessionConfig
	// WaitTime bounds the blocking reads on the leadership key.
	// Default: 30s
	WaitTime time.Duration
	// PollInterval is the delay before retrying a failed consul call.
	// Default: 1s
	PollInterval time.Duration
	// YieldBackoff is how long a candidate that yielded waits before
	// contending again. It defaults to PollInterval.
	YieldBackoff time.Duration
	// ShutdownTimeout bounds Stop.
	// Default: 10s
	ShutdownTimeout time.Duration
	// Disabled turns Start into a no-op
	Disabled bool
	// Logger is the engine logger. It defaults to log.DefaultLogger.
	Logger log.Logger
}

// SessionConfig defines the consul session created by the engine
type SessionConfig struct {
	// TTL of the session. Consul does not accept values below ten seconds.
	// Default: 10s
	TTL time.Duration
	// LockDelay is the time consul prevents the key from being acquired
	// after the session is invalidated
	LockDelay time.Duration
	// Behavior is what happens to the key when the session is invalidated:
	// release or delete.
	// Default: release
	Behavior string
	// RenewalInterval is the period of the session renewal.
	// It defaults to half the TTL.
	RenewalInterval time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values of the unset fields
func (config *Config) Sanitize() {
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	config.Namespace = strings.TrimPrefix(config.Namespace, "/")

	if config.Session.TTL <= 0 {
		config.Session.TTL = minSessionTTL
	}

	if config.Session.Behavior == "" {
		config.Session.Behavior = api.SessionBehaviorRelease
	}

	if config.Session.RenewalInterval <= 0 {
		config.Session.RenewalInterval = config.Session.TTL / 2
	}

	if config.WaitTime <= 0 {
		config.WaitTime = defaultWaitTime
	}

	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}

	if config.YieldBackoff <= 0 {
		config.YieldBackoff = config.PollInterval
	}

	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	if config.Logger == nil {
		config.Logger = log.DefaultLogger
	}
}

// Validate checks whether the configuration is valid
func (config *Config) Validate() error {
	behavior := config.Session.Behavior
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Namespace", config.Namespace)).
		AddAssertion(config.Session.TTL >= minSessionTTL, "Session.TTL must be at least ten seconds").
		AddAssertion(behavior == api.SessionBehaviorRelease || behavior == api.SessionBehaviorDelete, "Session.Behavior must be release or delete").
		AddAssertion(config.Session.LockDelay >= 0, "Session.LockDelay must not be negative").
		AddAssertion(config.Session.RenewalInterval < config.Session.TTL, "Session.RenewalInterval must be less than Session.TTL").
		AddValidator(validation.NewPositiveDurationValidator("WaitTime", config.WaitTime)).
		AddValidator(validation.NewPositiveDurationValidator("ShutdownTimeout", config.ShutdownTimeout)).
		Validate()
}
